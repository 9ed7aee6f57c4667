package repository

import (
	"database/sql"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"greencure/internal/models"
)

func TestUserRepository_Create(t *testing.T) {
	tests := []struct {
		name        string
		username    string
		hash        string
		expect      func(sqlmock.Sqlmock)
		wantID      int
		errContains string
	}{
		{
			name:     "success",
			username: "alice",
			hash:     "h123",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("alice", "h123").
					WillReturnResult(sqlmock.NewResult(42, 1))
			},
			wantID: 42,
		},
		{
			name:     "exec error",
			username: "bob",
			hash:     "h456",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("bob", "h456").
					WillReturnError(errors.New("db exec failed"))
			},
			errContains: "insert user",
		},
		{
			name:     "last insert id error",
			username: "carol",
			hash:     "h789",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectExec(regexp.QuoteMeta(insertUserSQL)).
					WithArgs("carol", "h789").
					WillReturnResult(sqlmock.NewErrorResult(errors.New("no last id")))
			},
			errContains: "get last insert id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewUserRepository(db)
			tt.expect(mock)

			id, err := repo.Create(tt.username, tt.hash)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errContains, err)
				}
				if id != 0 {
					t.Fatalf("expected id=0 on error, got %d", id)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if id != tt.wantID {
				t.Fatalf("want id %d, got %d", tt.wantID, id)
			}
		})
	}
}

func TestUserRepository_GetByUsername(t *testing.T) {
	tests := []struct {
		name        string
		username    string
		expect      func(sqlmock.Sqlmock)
		want        *models.User
		errContains string
	}{
		{
			name:     "found",
			username: "alice",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
					WithArgs("alice").
					WillReturnRows(sqlmock.NewRows([]string{"id", "username", "password_hash"}).AddRow(7, "alice", "h123"))
			},
			want: &models.User{ID: 7, Username: "alice", PasswordHash: "h123"},
		},
		{
			name:     "not found",
			username: "missing",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
					WithArgs("missing").
					WillReturnError(sql.ErrNoRows)
			},
		},
		{
			name:     "query error",
			username: "bob",
			expect: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(regexp.QuoteMeta(selectUserByUsernameSQL)).
					WithArgs("bob").
					WillReturnError(errors.New("db query failed"))
			},
			errContains: "select user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			repo := NewUserRepository(db)
			tt.expect(mock)

			u, err := repo.GetByUsername(tt.username)
			if tt.errContains != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errContains) {
					t.Fatalf("expected error containing %q, got %v", tt.errContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.want == nil {
				if u != nil {
					t.Fatalf("expected nil user, got %+v", u)
				}
				return
			}
			if u == nil || *u != *tt.want {
				t.Fatalf("want %+v, got %+v", tt.want, u)
			}
		})
	}
}

func TestUserRepository_Usernames(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectUsernamesSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("alice").AddRow("grower-2"))

	got, err := repo.Usernames(testCtx(t))
	if err != nil {
		t.Fatalf("Usernames: %v", err)
	}
	if len(got) != 2 || got[0] != "alice" || got[1] != "grower-2" {
		t.Fatalf("unexpected usernames %v", got)
	}
}

func TestUserRepository_Usernames_QueryError(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(selectUsernamesSQL)).WillReturnError(errors.New("gone"))

	if _, err := repo.Usernames(testCtx(t)); err == nil {
		t.Fatalf("expected error")
	}
}
