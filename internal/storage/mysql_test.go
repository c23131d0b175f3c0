package storage

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockMySQL 构造挂在sqlmock连接上的MySQL适配器
func newMockMySQL(t *testing.T) (*MySQL, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err, "创建sqlmock失败")
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err, "打开GORM连接失败")

	return &MySQL{db: gormDB}, mock
}

// TestSetPrimaryResumeClearsThenSetsInOneTransaction 设主简历必须先清除该用户全部主标记、
// 再设置目标简历，且两步在同一事务内，保证任意先前状态下至多一份主简历
func TestSetPrimaryResumeClearsThenSetsInOneTransaction(t *testing.T) {
	m, mock := newMockMySQL(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `resumes` SET `is_primary`=").
		WithArgs(false, sqlmock.AnyArg(), "u-1", true).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE `resumes` SET `is_primary`=").
		WithArgs(true, sqlmock.AnyArg(), "r-9", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT (.+) FROM `resumes` WHERE resume_id = ").
		WillReturnRows(sqlmock.NewRows([]string{"resume_id", "user_id", "is_primary"}).
			AddRow("r-9", "u-1", true))
	mock.ExpectCommit()

	resume, err := m.SetPrimaryResume(context.Background(), "r-9", "u-1")

	require.NoError(t, err)
	assert.Equal(t, "r-9", resume.ResumeID)
	assert.True(t, resume.IsPrimary)
	assert.NoError(t, mock.ExpectationsWereMet(), "清除与设置必须按序发生在同一事务内")
}

// TestSetPrimaryResumeNotFoundRollsBack 目标简历不存在或属于他人时回滚并返回未找到
func TestSetPrimaryResumeNotFoundRollsBack(t *testing.T) {
	m, mock := newMockMySQL(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `resumes` SET `is_primary`=").
		WithArgs(false, sqlmock.AnyArg(), "u-1", true).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("UPDATE `resumes` SET `is_primary`=").
		WithArgs(true, sqlmock.AnyArg(), "missing", "u-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := m.SetPrimaryResume(context.Background(), "missing", "u-1")

	require.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet(), "未命中目标时不应提交事务")
}

// TestGetOrCreateUserProvisionsUnknownExternalID 未见过的外部标识自动建档
func TestGetOrCreateUserProvisionsUnknownExternalID(t *testing.T) {
	m, mock := newMockMySQL(t)

	mock.ExpectQuery("SELECT (.+) FROM `users` WHERE external_id = ").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "external_id"}))
	mock.ExpectExec("INSERT INTO `users`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	user, err := m.GetOrCreateUserByExternalID(context.Background(), "ext-42")

	require.NoError(t, err)
	assert.Equal(t, "ext-42", user.ExternalID)
	assert.NotEmpty(t, user.UserID, "应生成UUID主键")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestGetOrCreateUserReturnsExistingRow 已建档的外部标识直接返回，不再插入
func TestGetOrCreateUserReturnsExistingRow(t *testing.T) {
	m, mock := newMockMySQL(t)

	mock.ExpectQuery("SELECT (.+) FROM `users` WHERE external_id = ").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "external_id"}).
			AddRow("u-7", "ext-7"))

	user, err := m.GetOrCreateUserByExternalID(context.Background(), "ext-7")

	require.NoError(t, err)
	assert.Equal(t, "u-7", user.UserID)
	assert.Equal(t, "ext-7", user.ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
