package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ouroboros-project/ouroboros/internal/apperr"
	"github.com/ouroboros-project/ouroboros/internal/domain"
)

// SQLStore implements domain.Store over database/sql, speaking either
// Postgres or SQLite depending on dialect. Every query is written in the
// shared subset of both dialects' SQL; the parts that differ are placeholder
// rendering (ph), the boolean false literal (falseLiteral), how an inserted
// id is read back (insertReturningID) and the row lock in LockResourceForReap.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLStore(database *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: database, dialect: dialect}
}

var _ domain.Store = (*SQLStore)(nil)

func notFound(kind apperr.Kind, err error, detail string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.New(kind, detail)
	}
	return apperr.Wrap(err, "a database error occurred")
}

// --- projects / users / memberships -------------------------------------

func (s *SQLStore) GetProject(ctx context.Context, id int64) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id, name FROM projects WHERE id = %s", ph(s.dialect, 1)), id)
	var p domain.Project
	if err := row.Scan(&p.ID, &p.Name); err != nil {
		return nil, notFound(apperr.ProjectNotFound, err, "project not found")
	}
	return &p, nil
}

func (s *SQLStore) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, email, name, is_active, is_superuser FROM users WHERE id = %s", ph(s.dialect, 1)), id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.IsSuperuser); err != nil {
		return nil, notFound(apperr.UserNotFound, err, "user not found")
	}
	return &u, nil
}

func (s *SQLStore) MembershipsForUser(ctx context.Context, userID int64) ([]domain.ProjectMembership, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT project_id, user_id, role FROM project_memberships WHERE user_id = %s", ph(s.dialect, 1)), userID)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to load memberships")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.ProjectMembership
	for rows.Next() {
		var m domain.ProjectMembership
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role); err != nil {
			return nil, apperr.Wrap(err, "failed to scan membership row")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// --- API keys ---------------------------------------------------------------

func (s *SQLStore) GetAPIKey(ctx context.Context, id int64) (*domain.APIKey, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, user_id, hashed_secret, created_at, revoked_at FROM api_keys WHERE id = %s", ph(s.dialect, 1)), id)
	var k domain.APIKey
	var revokedAt sql.NullTime
	if err := row.Scan(&k.ID, &k.UserID, &k.HashedSecret, &k.CreatedAt, &revokedAt); err != nil {
		return nil, notFound(apperr.UserNotFound, err, "api key not found")
	}
	if revokedAt.Valid {
		k.RevokedAt = &revokedAt.Time
	}
	return &k, nil
}

func (s *SQLStore) CreateAPIKey(ctx context.Context, k *domain.APIKey) (*domain.APIKey, error) {
	k.CreatedAt = time.Now().UTC()
	query := fmt.Sprintf("INSERT INTO api_keys (user_id, hashed_secret, created_at) VALUES (%s,%s,%s)",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3))
	id, err := s.insertReturningID(ctx, query, k.UserID, k.HashedSecret, k.CreatedAt)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create api key")
	}
	k.ID = id
	return k, nil
}

func (s *SQLStore) RevokeAPIKey(ctx context.Context, id int64) error {
	query := fmt.Sprintf("UPDATE api_keys SET revoked_at = %s WHERE id = %s", ph(s.dialect, 1), ph(s.dialect, 2))
	_, err := s.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(err, "failed to revoke api key")
	}
	return nil
}

// --- hash lists -----------------------------------------------------------

func (s *SQLStore) GetHashList(ctx context.Context, id int64) (*domain.HashList, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, project_id, name, description, hash_type_id, is_unavailable FROM hash_lists WHERE id = %s",
		ph(s.dialect, 1)), id)
	var h domain.HashList
	var projectID sql.NullInt64
	if err := row.Scan(&h.ID, &projectID, &h.Name, &h.Description, &h.HashTypeID, &h.IsUnavailable); err != nil {
		return nil, notFound(apperr.HashListNotFound, err, "hash list not found")
	}
	if projectID.Valid {
		h.ProjectID = &projectID.Int64
	}
	return &h, nil
}

func (s *SQLStore) CreateHashList(ctx context.Context, h *domain.HashList) (*domain.HashList, error) {
	query := fmt.Sprintf(
		"INSERT INTO hash_lists (project_id, name, description, hash_type_id, is_unavailable) VALUES (%s,%s,%s,%s,%s)",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5))
	id, err := s.insertReturningID(ctx, query, h.ProjectID, h.Name, h.Description, h.HashTypeID, h.IsUnavailable)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create hash list")
	}
	h.ID = id
	return h, nil
}

func (s *SQLStore) UpdateHashList(ctx context.Context, h *domain.HashList) error {
	query := fmt.Sprintf(
		"UPDATE hash_lists SET project_id=%s, name=%s, description=%s, hash_type_id=%s, is_unavailable=%s WHERE id=%s",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6))
	_, err := s.db.ExecContext(ctx, query, h.ProjectID, h.Name, h.Description, h.HashTypeID, h.IsUnavailable, h.ID)
	if err != nil {
		return apperr.Wrap(err, "failed to update hash list")
	}
	return nil
}

func (s *SQLStore) DeleteHashList(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM hash_lists WHERE id = %s", ph(s.dialect, 1)), id)
	if err != nil {
		return apperr.Wrap(err, "failed to delete hash list")
	}
	return nil
}

func (s *SQLStore) ListHashLists(ctx context.Context, f domain.HashListFilter) ([]domain.HashList, int, error) {
	var where []string
	var args []any
	n := 1
	if f.Name != nil {
		where = append(where, fmt.Sprintf("name ILIKE %s", ph(s.dialect, n)))
		args = append(args, "%"+*f.Name+"%")
		n++
	}
	if f.ProjectID != nil {
		where = append(where, fmt.Sprintf("project_id = %s", ph(s.dialect, n)))
		args = append(args, *f.ProjectID)
		n++
	}
	if f.AccessibleProject != nil {
		ids := make([]int64, 0, len(f.AccessibleProject))
		for id := range f.AccessibleProject {
			ids = append(ids, id)
		}
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = ph(s.dialect, n)
			args = append(args, id)
			n++
		}
		if len(placeholders) == 0 {
			where = append(where, "(project_id IS NULL AND 1=0)")
		} else {
			where = append(where, fmt.Sprintf("(project_id IS NULL OR project_id IN (%s))", strings.Join(placeholders, ",")))
		}
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM hash_lists %s", whereClause)
	if err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, "failed to count hash lists")
	}

	query := fmt.Sprintf(
		"SELECT id, project_id, name, description, hash_type_id, is_unavailable FROM hash_lists %s ORDER BY id ASC LIMIT %s OFFSET %s",
		whereClause, ph(s.dialect, n), ph(s.dialect, n+1))
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "failed to list hash lists")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.HashList
	for rows.Next() {
		var h domain.HashList
		var projectID sql.NullInt64
		if err := rows.Scan(&h.ID, &projectID, &h.Name, &h.Description, &h.HashTypeID, &h.IsUnavailable); err != nil {
			return nil, 0, apperr.Wrap(err, "failed to scan hash list row")
		}
		if projectID.Valid {
			h.ProjectID = &projectID.Int64
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) ListHashItems(ctx context.Context, hashListID int64, f domain.HashItemFilter) ([]domain.HashItem, int, error) {
	where := []string{fmt.Sprintf("hash_list_id = %s", ph(s.dialect, 1))}
	args := []any{hashListID}
	n := 2
	if f.Status != nil {
		switch *f.Status {
		case "cracked":
			where = append(where, "plain_text IS NOT NULL")
		case "uncracked":
			where = append(where, "plain_text IS NULL")
		}
	}
	if f.Search != nil {
		where = append(where, fmt.Sprintf("hash ILIKE %s", ph(s.dialect, n)))
		args = append(args, "%"+*f.Search+"%")
		n++
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM hash_items %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, "failed to count hash items")
	}

	query := fmt.Sprintf("SELECT id, hash_list_id, hash, salt, plain_text FROM hash_items %s ORDER BY id ASC LIMIT %s OFFSET %s",
		whereClause, ph(s.dialect, n), ph(s.dialect, n+1))
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "failed to list hash items")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.HashItem
	for rows.Next() {
		var h domain.HashItem
		var salt, plainText sql.NullString
		if err := rows.Scan(&h.ID, &h.HashListID, &h.Hash, &salt, &plainText); err != nil {
			return nil, 0, apperr.Wrap(err, "failed to scan hash item row")
		}
		if salt.Valid {
			h.Salt = &salt.String
		}
		if plainText.Valid {
			h.PlainText = &plainText.String
		}
		out = append(out, h)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) CountCampaignsReferencingHashList(ctx context.Context, hashListID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM campaigns WHERE hash_list_id = %s", ph(s.dialect, 1)), hashListID).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(err, "failed to count referencing campaigns")
	}
	return n, nil
}

// --- campaigns --------------------------------------------------------------

func (s *SQLStore) GetCampaign(ctx context.Context, id int64) (*domain.Campaign, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, project_id, hash_list_id, name, description, priority, state, created_at, updated_at FROM campaigns WHERE id = %s",
		ph(s.dialect, 1)), id)
	var c domain.Campaign
	if err := row.Scan(&c.ID, &c.ProjectID, &c.HashListID, &c.Name, &c.Description, &c.Priority, &c.State, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, notFound(apperr.CampaignNotFound, err, "campaign not found")
	}
	return &c, nil
}

func (s *SQLStore) CreateCampaign(ctx context.Context, c *domain.Campaign) (*domain.Campaign, error) {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	query := fmt.Sprintf(
		"INSERT INTO campaigns (project_id, hash_list_id, name, description, priority, state, created_at, updated_at) VALUES (%s,%s,%s,%s,%s,%s,%s,%s)",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6), ph(s.dialect, 7), ph(s.dialect, 8))
	id, err := s.insertReturningID(ctx, query, c.ProjectID, c.HashListID, c.Name, c.Description, c.Priority, c.State, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create campaign")
	}
	c.ID = id
	return c, nil
}

func (s *SQLStore) UpdateCampaign(ctx context.Context, c *domain.Campaign) error {
	c.UpdatedAt = time.Now().UTC()
	query := fmt.Sprintf(
		"UPDATE campaigns SET project_id=%s, hash_list_id=%s, name=%s, description=%s, priority=%s, state=%s, updated_at=%s WHERE id=%s",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6), ph(s.dialect, 7), ph(s.dialect, 8))
	_, err := s.db.ExecContext(ctx, query, c.ProjectID, c.HashListID, c.Name, c.Description, c.Priority, c.State, c.UpdatedAt, c.ID)
	if err != nil {
		return apperr.Wrap(err, "failed to update campaign")
	}
	return nil
}

func (s *SQLStore) DeleteCampaign(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM campaigns WHERE id = %s", ph(s.dialect, 1)), id)
	if err != nil {
		return apperr.Wrap(err, "failed to delete campaign")
	}
	return nil
}

func (s *SQLStore) ListCampaigns(ctx context.Context, f domain.CampaignFilter) ([]domain.Campaign, int, error) {
	var where []string
	var args []any
	n := 1
	if f.Name != nil {
		where = append(where, fmt.Sprintf("name ILIKE %s", ph(s.dialect, n)))
		args = append(args, "%"+*f.Name+"%")
		n++
	}
	if f.ProjectID != nil {
		where = append(where, fmt.Sprintf("project_id = %s", ph(s.dialect, n)))
		args = append(args, *f.ProjectID)
		n++
	}
	if f.AccessibleProject != nil {
		ids := make([]int64, 0, len(f.AccessibleProject))
		for id := range f.AccessibleProject {
			ids = append(ids, id)
		}
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = ph(s.dialect, n)
			args = append(args, id)
			n++
		}
		if len(placeholders) == 0 {
			where = append(where, "1=0")
		} else {
			where = append(where, fmt.Sprintf("project_id IN (%s)", strings.Join(placeholders, ",")))
		}
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM campaigns %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, "failed to count campaigns")
	}

	query := fmt.Sprintf(
		"SELECT id, project_id, hash_list_id, name, description, priority, state, created_at, updated_at FROM campaigns %s ORDER BY id ASC LIMIT %s OFFSET %s",
		whereClause, ph(s.dialect, n), ph(s.dialect, n+1))
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "failed to list campaigns")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.HashListID, &c.Name, &c.Description, &c.Priority, &c.State, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, apperr.Wrap(err, "failed to scan campaign row")
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// --- attacks ----------------------------------------------------------------

func (s *SQLStore) GetAttack(ctx context.Context, id int64) (*domain.Attack, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, campaign_id, name, attack_mode, position, state, word_list_id, rule_list_id, mask_list_id, left_rule, hash_list_url, hash_list_checksum, mask FROM attacks WHERE id = %s",
		ph(s.dialect, 1)), id)
	a, err := scanAttack(row)
	if err != nil {
		return nil, notFound(apperr.AttackNotFound, err, "attack not found")
	}
	return a, nil
}

func scanAttack(row *sql.Row) (*domain.Attack, error) {
	var a domain.Attack
	var wordListID, ruleListID, maskListID, leftRule, hashListURL, hashListChecksum sql.NullString
	if err := row.Scan(&a.ID, &a.CampaignID, &a.Name, &a.AttackMode, &a.Position, &a.State,
		&wordListID, &ruleListID, &maskListID, &leftRule, &hashListURL, &hashListChecksum, &a.Mask); err != nil {
		return nil, err
	}
	a.WordListID = nullUUID(wordListID)
	a.RuleListID = nullUUID(ruleListID)
	a.MaskListID = nullUUID(maskListID)
	if leftRule.Valid {
		a.LeftRule = &leftRule.String
	}
	if hashListURL.Valid {
		a.HashListURL = &hashListURL.String
	}
	if hashListChecksum.Valid {
		a.HashListChecksum = &hashListChecksum.String
	}
	return &a, nil
}

func nullUUID(s sql.NullString) *uuid.UUID {
	if !s.Valid || s.String == "" {
		return nil
	}
	id, err := uuid.Parse(s.String)
	if err != nil {
		return nil
	}
	return &id
}

func uuidPtrStr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	str := id.String()
	return &str
}

func (s *SQLStore) CreateAttack(ctx context.Context, a *domain.Attack) (*domain.Attack, error) {
	query := fmt.Sprintf(
		"INSERT INTO attacks (campaign_id, name, attack_mode, position, state, word_list_id, rule_list_id, mask_list_id, left_rule, hash_list_url, hash_list_checksum, mask) VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6),
		ph(s.dialect, 7), ph(s.dialect, 8), ph(s.dialect, 9), ph(s.dialect, 10), ph(s.dialect, 11), ph(s.dialect, 12))
	id, err := s.insertReturningID(ctx, query, a.CampaignID, a.Name, a.AttackMode, a.Position, a.State,
		uuidPtrStr(a.WordListID), uuidPtrStr(a.RuleListID), uuidPtrStr(a.MaskListID), a.LeftRule, a.HashListURL, a.HashListChecksum, a.Mask)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create attack")
	}
	a.ID = id
	return a, nil
}

func (s *SQLStore) UpdateAttack(ctx context.Context, a *domain.Attack) error {
	query := fmt.Sprintf(
		"UPDATE attacks SET name=%s, attack_mode=%s, position=%s, state=%s, word_list_id=%s, rule_list_id=%s, mask_list_id=%s, left_rule=%s, hash_list_url=%s, hash_list_checksum=%s, mask=%s WHERE id=%s",
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6),
		ph(s.dialect, 7), ph(s.dialect, 8), ph(s.dialect, 9), ph(s.dialect, 10), ph(s.dialect, 11), ph(s.dialect, 12))
	_, err := s.db.ExecContext(ctx, query, a.Name, a.AttackMode, a.Position, a.State,
		uuidPtrStr(a.WordListID), uuidPtrStr(a.RuleListID), uuidPtrStr(a.MaskListID), a.LeftRule, a.HashListURL, a.HashListChecksum, a.Mask, a.ID)
	if err != nil {
		return apperr.Wrap(err, "failed to update attack")
	}
	return nil
}

func (s *SQLStore) DeleteAttack(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM attacks WHERE id = %s", ph(s.dialect, 1)), id)
	if err != nil {
		return apperr.Wrap(err, "failed to delete attack")
	}
	return nil
}

func (s *SQLStore) ListAttacks(ctx context.Context, f domain.AttackFilter) ([]domain.Attack, int, error) {
	var where []string
	var args []any
	n := 1
	if f.CampaignID != nil {
		where = append(where, fmt.Sprintf("campaign_id = %s", ph(s.dialect, n)))
		args = append(args, *f.CampaignID)
		n++
	}
	if f.State != nil {
		where = append(where, fmt.Sprintf("state = %s", ph(s.dialect, n)))
		args = append(args, *f.State)
		n++
	}
	if f.AccessibleProject != nil {
		ids := make([]int64, 0, len(f.AccessibleProject))
		for id := range f.AccessibleProject {
			ids = append(ids, id)
		}
		placeholders := make([]string, len(ids))
		for i, id := range ids {
			placeholders[i] = ph(s.dialect, n)
			args = append(args, id)
			n++
		}
		joinWhere := "1=0"
		if len(placeholders) > 0 {
			joinWhere = fmt.Sprintf("c.project_id IN (%s)", strings.Join(placeholders, ","))
		}
		where = append(where, fmt.Sprintf("attacks.campaign_id IN (SELECT id FROM campaigns c WHERE %s)", joinWhere))
	}
	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM attacks %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, "failed to count attacks")
	}

	query := fmt.Sprintf(
		"SELECT id, campaign_id, name, attack_mode, position, state, word_list_id, rule_list_id, mask_list_id, left_rule, hash_list_url, hash_list_checksum, mask FROM attacks %s ORDER BY position ASC, id ASC LIMIT %s OFFSET %s",
		whereClause, ph(s.dialect, n), ph(s.dialect, n+1))
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "failed to list attacks")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Attack
	for rows.Next() {
		var a domain.Attack
		var wordListID, ruleListID, maskListID, leftRule, hashListURL, hashListChecksum sql.NullString
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Name, &a.AttackMode, &a.Position, &a.State,
			&wordListID, &ruleListID, &maskListID, &leftRule, &hashListURL, &hashListChecksum, &a.Mask); err != nil {
			return nil, 0, apperr.Wrap(err, "failed to scan attack row")
		}
		a.WordListID = nullUUID(wordListID)
		a.RuleListID = nullUUID(ruleListID)
		a.MaskListID = nullUUID(maskListID)
		if leftRule.Valid {
			a.LeftRule = &leftRule.String
		}
		if hashListURL.Valid {
			a.HashListURL = &hashListURL.String
		}
		if hashListChecksum.Valid {
			a.HashListChecksum = &hashListChecksum.String
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (s *SQLStore) ReorderAttacks(ctx context.Context, campaignID int64, order []domain.AttackPriority) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, "failed to begin reorder transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range order {
		query := fmt.Sprintf("UPDATE attacks SET position = %s WHERE id = %s AND campaign_id = %s",
			ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3))
		if _, err := tx.ExecContext(ctx, query, entry.Priority, entry.AttackID, campaignID); err != nil {
			return apperr.Wrap(err, "failed to apply attack reorder")
		}
	}
	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, "failed to commit attack reorder")
	}
	return nil
}

func (s *SQLStore) CountAttacksReferencingResource(ctx context.Context, resourceID uuid.UUID) (int, error) {
	var n int
	query := fmt.Sprintf("SELECT (SELECT COUNT(*) FROM attacks WHERE word_list_id = %s) + (SELECT COUNT(*) FROM attacks WHERE left_rule = %s)",
		ph(s.dialect, 1), ph(s.dialect, 2))
	err := s.db.QueryRowContext(ctx, query, resourceID.String(), resourceID.String()).Scan(&n)
	if err != nil {
		return 0, apperr.Wrap(err, "failed to count referencing attacks")
	}
	return n, nil
}

func (s *SQLStore) ListAttacksReferencingResource(ctx context.Context, resourceID uuid.UUID) ([]domain.Attack, error) {
	query := fmt.Sprintf(
		"SELECT id, campaign_id, name, attack_mode, position, state, word_list_id, rule_list_id, mask_list_id, left_rule, hash_list_url, hash_list_checksum, mask FROM attacks WHERE word_list_id = %s OR left_rule = %s",
		ph(s.dialect, 1), ph(s.dialect, 2))
	rows, err := s.db.QueryContext(ctx, query, resourceID.String(), resourceID.String())
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list referencing attacks")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Attack
	for rows.Next() {
		var a domain.Attack
		var wordListID, ruleListID, maskListID, leftRule, hashListURL, hashListChecksum sql.NullString
		if err := rows.Scan(&a.ID, &a.CampaignID, &a.Name, &a.AttackMode, &a.Position, &a.State,
			&wordListID, &ruleListID, &maskListID, &leftRule, &hashListURL, &hashListChecksum, &a.Mask); err != nil {
			return nil, apperr.Wrap(err, "failed to scan attack row")
		}
		a.WordListID = nullUUID(wordListID)
		a.RuleListID = nullUUID(ruleListID)
		a.MaskListID = nullUUID(maskListID)
		if leftRule.Valid {
			a.LeftRule = &leftRule.String
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// --- tasks ------------------------------------------------------------------

func (s *SQLStore) GetTask(ctx context.Context, id int64) (*domain.Task, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, attack_id, agent_id, status, progress, keyspace_total FROM tasks WHERE id = %s", ph(s.dialect, 1)), id)
	var t domain.Task
	var agentID sql.NullInt64
	if err := row.Scan(&t.ID, &t.AttackID, &agentID, &t.Status, &t.Progress, &t.KeyspaceTotal); err != nil {
		return nil, notFound(apperr.TaskNotFound, err, "task not found")
	}
	if agentID.Valid {
		t.AgentID = &agentID.Int64
	}
	return &t, nil
}

func (s *SQLStore) ListTasksForAttack(ctx context.Context, attackID int64) ([]domain.Task, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id, attack_id, agent_id, status, progress, keyspace_total FROM tasks WHERE attack_id = %s ORDER BY id ASC",
		ph(s.dialect, 1)), attackID)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list tasks")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.Task
	for rows.Next() {
		var t domain.Task
		var agentID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.AttackID, &agentID, &t.Status, &t.Progress, &t.KeyspaceTotal); err != nil {
			return nil, apperr.Wrap(err, "failed to scan task row")
		}
		if agentID.Valid {
			t.AgentID = &agentID.Int64
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLStore) CountActiveAgentsForCampaign(ctx context.Context, campaignID int64) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(DISTINCT tasks.agent_id) FROM tasks
		JOIN attacks ON attacks.id = tasks.attack_id
		WHERE attacks.campaign_id = %s AND tasks.status = 'RUNNING' AND tasks.agent_id IS NOT NULL`, ph(s.dialect, 1))
	var n int
	if err := s.db.QueryRowContext(ctx, query, campaignID).Scan(&n); err != nil {
		return 0, apperr.Wrap(err, "failed to count active agents")
	}
	return n, nil
}

// --- resources ----------------------------------------------------------------

func (s *SQLStore) GetResource(ctx context.Context, id uuid.UUID) (*domain.AttackResourceFile, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT id, project_id, file_name, file_label, resource_type, line_format, line_encoding, used_for_modes, source, line_count, byte_size, checksum, guid, is_uploaded, tags, content, created_at, updated_at FROM attack_resource_files WHERE id = %s",
		ph(s.dialect, 1)), id.String())
	r, err := scanResource(row)
	if err != nil {
		return nil, notFound(apperr.ResourceNotFound, err, "resource not found")
	}
	return r, nil
}

func scanResource(row *sql.Row) (*domain.AttackResourceFile, error) {
	var r domain.AttackResourceFile
	var idStr, guidStr string
	var projectID sql.NullInt64
	var fileLabel sql.NullString
	var usedForModes, tags string
	var content sql.NullString
	if err := row.Scan(&idStr, &projectID, &r.FileName, &fileLabel, &r.ResourceType, &r.LineFormat, &r.LineEncoding,
		&usedForModes, &r.Source, &r.LineCount, &r.ByteSize, &r.Checksum, &guidStr, &r.IsUploaded, &tags, &content,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt resource id %q: %w", idStr, err)
	}
	r.ID = id
	guid, err := uuid.Parse(guidStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt resource guid %q: %w", guidStr, err)
	}
	r.Guid = guid
	if projectID.Valid {
		r.ProjectID = &projectID.Int64
	}
	if fileLabel.Valid {
		r.FileLabel = &fileLabel.String
	}
	r.UsedForModes = decodeModes(usedForModes)
	r.Tags = decodeCSV(tags)
	if content.Valid && content.String != "" {
		r.Content = &domain.ResourceContent{Lines: strings.Split(content.String, "\n")}
	}
	return &r, nil
}

func decodeModes(csv string) []domain.AttackMode {
	if csv == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]domain.AttackMode, len(parts))
	for i, p := range parts {
		out[i] = domain.AttackMode(p)
	}
	return out
}

func encodeModes(modes []domain.AttackMode) string {
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}

func decodeCSV(csv string) []string {
	if csv == "" {
		return nil
	}
	return strings.Split(csv, ",")
}

func (s *SQLStore) CreateResource(ctx context.Context, r *domain.AttackResourceFile) (*domain.AttackResourceFile, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Guid == uuid.Nil {
		r.Guid = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now
	var contentStr *string
	if r.Content != nil {
		joined := strings.Join(r.Content.Lines, "\n")
		contentStr = &joined
	}
	query := fmt.Sprintf(`INSERT INTO attack_resource_files
		(id, project_id, file_name, file_label, resource_type, line_format, line_encoding, used_for_modes, source, line_count, byte_size, checksum, guid, is_uploaded, tags, content, created_at, updated_at)
		VALUES (%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s)`,
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6),
		ph(s.dialect, 7), ph(s.dialect, 8), ph(s.dialect, 9), ph(s.dialect, 10), ph(s.dialect, 11), ph(s.dialect, 12),
		ph(s.dialect, 13), ph(s.dialect, 14), ph(s.dialect, 15), ph(s.dialect, 16), ph(s.dialect, 17), ph(s.dialect, 18))
	_, err := s.db.ExecContext(ctx, query, r.ID.String(), r.ProjectID, r.FileName, r.FileLabel, r.ResourceType,
		r.LineFormat, r.LineEncoding, encodeModes(r.UsedForModes), r.Source, r.LineCount, r.ByteSize, r.Checksum,
		r.Guid.String(), r.IsUploaded, strings.Join(r.Tags, ","), contentStr, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to create resource")
	}
	return r, nil
}

func (s *SQLStore) UpdateResource(ctx context.Context, r *domain.AttackResourceFile) error {
	r.UpdatedAt = time.Now().UTC()
	var contentStr *string
	if r.Content != nil {
		joined := strings.Join(r.Content.Lines, "\n")
		contentStr = &joined
	}
	query := fmt.Sprintf(`UPDATE attack_resource_files SET
		project_id=%s, file_name=%s, file_label=%s, resource_type=%s, line_format=%s, line_encoding=%s,
		used_for_modes=%s, source=%s, line_count=%s, byte_size=%s, checksum=%s, is_uploaded=%s, tags=%s, content=%s, updated_at=%s
		WHERE id=%s`,
		ph(s.dialect, 1), ph(s.dialect, 2), ph(s.dialect, 3), ph(s.dialect, 4), ph(s.dialect, 5), ph(s.dialect, 6),
		ph(s.dialect, 7), ph(s.dialect, 8), ph(s.dialect, 9), ph(s.dialect, 10), ph(s.dialect, 11), ph(s.dialect, 12),
		ph(s.dialect, 13), ph(s.dialect, 14), ph(s.dialect, 15), ph(s.dialect, 16))
	_, err := s.db.ExecContext(ctx, query, r.ProjectID, r.FileName, r.FileLabel, r.ResourceType, r.LineFormat,
		r.LineEncoding, encodeModes(r.UsedForModes), r.Source, r.LineCount, r.ByteSize, r.Checksum, r.IsUploaded,
		strings.Join(r.Tags, ","), contentStr, r.UpdatedAt, r.ID.String())
	if err != nil {
		return apperr.Wrap(err, "failed to update resource")
	}
	return nil
}

func (s *SQLStore) DeleteResource(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM attack_resource_files WHERE id = %s", ph(s.dialect, 1)), id.String())
	if err != nil {
		return apperr.Wrap(err, "failed to delete resource")
	}
	return nil
}

func (s *SQLStore) ListResources(ctx context.Context, f domain.ResourceFilter) ([]domain.AttackResourceFile, int, error) {
	where := []string{"resource_type NOT IN ('ephemeral_word_list','ephemeral_rule_list')"}
	var args []any
	n := 1
	if f.ResourceType != nil {
		where = append(where, fmt.Sprintf("resource_type = %s", ph(s.dialect, n)))
		args = append(args, *f.ResourceType)
		n++
	}
	if f.Search != nil {
		where = append(where, fmt.Sprintf("file_name ILIKE %s", ph(s.dialect, n)))
		args = append(args, "%"+*f.Search+"%")
		n++
	}
	if !f.Superuser {
		if f.ProjectID != nil {
			where = append(where, fmt.Sprintf("(project_id = %s OR project_id IS NULL)", ph(s.dialect, n)))
			args = append(args, *f.ProjectID)
			n++
		} else if f.AccessibleProject != nil {
			ids := make([]int64, 0, len(f.AccessibleProject))
			for id := range f.AccessibleProject {
				ids = append(ids, id)
			}
			placeholders := make([]string, len(ids))
			for i, id := range ids {
				placeholders[i] = ph(s.dialect, n)
				args = append(args, id)
				n++
			}
			if len(placeholders) == 0 {
				where = append(where, "project_id IS NULL")
			} else {
				where = append(where, fmt.Sprintf("(project_id IN (%s) OR project_id IS NULL)", strings.Join(placeholders, ",")))
			}
		}
	} else if f.ProjectID != nil {
		where = append(where, fmt.Sprintf("project_id = %s", ph(s.dialect, n)))
		args = append(args, *f.ProjectID)
		n++
	}
	whereClause := "WHERE " + strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM attack_resource_files %s", whereClause), args...).Scan(&total); err != nil {
		return nil, 0, apperr.Wrap(err, "failed to count resources")
	}

	query := fmt.Sprintf(
		"SELECT id, project_id, file_name, file_label, resource_type, line_format, line_encoding, used_for_modes, source, line_count, byte_size, checksum, guid, is_uploaded, tags, content, created_at, updated_at FROM attack_resource_files %s ORDER BY created_at DESC LIMIT %s OFFSET %s",
		whereClause, ph(s.dialect, n), ph(s.dialect, n+1))
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, apperr.Wrap(err, "failed to list resources")
	}
	defer func() { _ = rows.Close() }()

	var out []domain.AttackResourceFile
	for rows.Next() {
		r, err := scanResourceRows(rows)
		if err != nil {
			return nil, 0, apperr.Wrap(err, "failed to scan resource row")
		}
		out = append(out, *r)
	}
	return out, total, rows.Err()
}

func scanResourceRows(rows *sql.Rows) (*domain.AttackResourceFile, error) {
	var r domain.AttackResourceFile
	var idStr, guidStr string
	var projectID sql.NullInt64
	var fileLabel sql.NullString
	var usedForModes, tags string
	var content sql.NullString
	if err := rows.Scan(&idStr, &projectID, &r.FileName, &fileLabel, &r.ResourceType, &r.LineFormat, &r.LineEncoding,
		&usedForModes, &r.Source, &r.LineCount, &r.ByteSize, &r.Checksum, &guidStr, &r.IsUploaded, &tags, &content,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	guid, err := uuid.Parse(guidStr)
	if err != nil {
		return nil, err
	}
	r.ID, r.Guid = id, guid
	if projectID.Valid {
		r.ProjectID = &projectID.Int64
	}
	if fileLabel.Valid {
		r.FileLabel = &fileLabel.String
	}
	r.UsedForModes = decodeModes(usedForModes)
	r.Tags = decodeCSV(tags)
	if content.Valid && content.String != "" {
		r.Content = &domain.ResourceContent{Lines: strings.Split(content.String, "\n")}
	}
	return &r, nil
}

func (s *SQLStore) ListStaleUnuploadedResourceIDs(ctx context.Context, olderThan time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		"SELECT id FROM attack_resource_files WHERE is_uploaded = %s AND created_at < %s",
		falseLiteral(s.dialect), ph(s.dialect, 1)), olderThan)
	if err != nil {
		return nil, apperr.Wrap(err, "failed to list stale resources")
	}
	defer func() { _ = rows.Close() }()

	var out []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, apperr.Wrap(err, "failed to scan stale resource id")
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func falseLiteral(d Dialect) string {
	if d == DialectSQLite {
		return "0"
	}
	return "false"
}

// LockResourceForReap runs fn with the row locked FOR UPDATE SKIP LOCKED,
// so concurrent reaper goroutines never contend for the same stale
// resource. Grounded on PostgresLedger.AcquireNextPending: select-lock,
// run the caller's logic, commit per row rather than batching the whole
// sweep in one transaction. SQLite has no row-level locking, so under the
// sqlite dialect this degrades to a plain transaction — acceptable since
// lite mode only ever runs a single process.
func (s *SQLStore) LockResourceForReap(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, r *domain.AttackResourceFile) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(err, "failed to begin reap transaction")
	}
	defer func() { _ = tx.Rollback() }()

	lockSuffix := ""
	if s.dialect == DialectPostgres {
		lockSuffix = " FOR UPDATE SKIP LOCKED"
	}
	query := fmt.Sprintf(
		"SELECT id, project_id, file_name, file_label, resource_type, line_format, line_encoding, used_for_modes, source, line_count, byte_size, checksum, guid, is_uploaded, tags, content, created_at, updated_at FROM attack_resource_files WHERE id = %s%s",
		ph(s.dialect, 1), lockSuffix)
	row := tx.QueryRowContext(ctx, query, id.String())
	r, err := scanResourceTx(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil // already claimed by another reaper goroutine, or deleted
		}
		return apperr.Wrap(err, "failed to load resource for reap")
	}

	if err := fn(ctx, r); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperr.Wrap(err, "failed to commit reap transaction")
	}
	return nil
}

func scanResourceTx(row *sql.Row) (*domain.AttackResourceFile, error) {
	return scanResource(row)
}

// insertReturningID issues query and reports the new row's id, using
// RETURNING on Postgres and LastInsertId on SQLite since the two dialects
// disagree on how to surface it.
func (s *SQLStore) insertReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	if s.dialect == DialectPostgres {
		var id int64
		err := s.db.QueryRowContext(ctx, query+" RETURNING id", args...).Scan(&id)
		return id, err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
