package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/proppass/internal/account/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, account *domain.Account) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO accounts (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		account.ID,
		account.Name,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Account, error) {
	var account domain.Account
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, created_at, updated_at FROM accounts WHERE id = ?`,
		id,
	).Scan(&account).Error
	if err != nil {
		return nil, err
	}
	if account.ID == 0 {
		return nil, nil
	}
	return &account, nil
}

// UpsertMember inserts the membership or overwrites its role.
func (r *repo) UpsertMember(ctx context.Context, db *gorm.DB, member *domain.Member) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO account_users (account_id, user_id, role, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, user_id)
		 DO UPDATE SET role = excluded.role, updated_at = excluded.updated_at`,
		member.AccountID,
		member.UserID,
		member.Role,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repo) FindMember(ctx context.Context, db *gorm.DB, accountID, userID snowflake.ID) (*domain.Member, error) {
	var member domain.Member
	err := db.WithContext(ctx).Raw(
		`SELECT account_id, user_id, role, created_at, updated_at
		 FROM account_users WHERE account_id = ? AND user_id = ?`,
		accountID,
		userID,
	).Scan(&member).Error
	if err != nil {
		return nil, err
	}
	if member.AccountID == 0 {
		return nil, nil
	}
	return &member, nil
}

func (r *repo) InsertContact(ctx context.Context, db *gorm.DB, contact *domain.Contact) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO contacts (id, account_id, name, email, phone, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		contact.ID,
		contact.AccountID,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.CreatedAt,
	).Error
}

func (r *repo) ListContacts(ctx context.Context, db *gorm.DB, accountID snowflake.ID) ([]domain.Contact, error) {
	var contacts []domain.Contact
	err := db.WithContext(ctx).Raw(
		`SELECT id, account_id, name, email, phone, created_at
		 FROM contacts WHERE account_id = ? ORDER BY created_at DESC, id DESC`,
		accountID,
	).Scan(&contacts).Error
	if err != nil {
		return nil, err
	}
	return contacts, nil
}
