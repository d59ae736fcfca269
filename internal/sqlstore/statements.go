package sqlstore

import (
	"database/sql"
	"fmt"
)

const (
	codeColumns    = "code, status, created_at, assigned_user_id, assigned_email, assigned_name, used_at"
	requestColumns = "id, email, user_id, name, code, status, requested_at"
	userColumns    = "username, name, email, token, role, telegram_id, telegram_username, telegram_enabled, log_level, registered_at"
)

// prepareStmt caches statements used outside transactions. It must not be called while the
// calling goroutine holds a transaction: the SQLite pool has one connection.
func (s *SqlStore) prepareStmt(name, query string) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stmt, ok := s.statements[name]; ok {
		return stmt, nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("prepare statement [%s]: %w", name, err)
	}

	s.statements[name] = stmt
	return stmt, nil
}

func (s *SqlStore) closeStmt() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, stmt := range s.statements {
		_ = stmt.Close()
		delete(s.statements, name)
	}
}

func (s *SqlStore) stmtSelectCode() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE code = ?`, codeColumns, s.table("mentor_codes"))
	return s.prepareStmt("selectCode", query)
}

func (s *SqlStore) stmtSelectRequest() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, requestColumns, s.table("mentor_requests"))
	return s.prepareStmt("selectRequest", query)
}

func (s *SqlStore) stmtSelectCodesOrdered() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY created_at DESC, code DESC LIMIT ?`,
		codeColumns, s.table("mentor_codes"))
	return s.prepareStmt("selectCodesOrdered", query)
}

func (s *SqlStore) stmtSelectCodesAll() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, codeColumns, s.table("mentor_codes"))
	return s.prepareStmt("selectCodesAll", query)
}

func (s *SqlStore) stmtSelectRequestsOrdered() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY requested_at DESC, id DESC LIMIT ?`,
		requestColumns, s.table("mentor_requests"))
	return s.prepareStmt("selectRequestsOrdered", query)
}

func (s *SqlStore) stmtSelectRequestsAll() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s`, requestColumns, s.table("mentor_requests"))
	return s.prepareStmt("selectRequestsAll", query)
}

func (s *SqlStore) stmtFingerprint(collection string) (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT COUNT(*), COALESCE(MAX(updated_at), 0) FROM %s`, s.table(collection))
	return s.prepareStmt("fingerprint_"+collection, query)
}

func (s *SqlStore) stmtSelectUserByToken() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE token = ?`, userColumns, s.table("users"))
	return s.prepareStmt("selectUserByToken", query)
}

func (s *SqlStore) stmtSelectTelegramUsers() (*sql.Stmt, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE telegram_id > 0`, userColumns, s.table("users"))
	return s.prepareStmt("selectTelegramUsers", query)
}

func (s *SqlStore) stmtUpsertUser() (*sql.Stmt, error) {
	return s.prepareStmt("upsertUser", fmt.Sprintf(s.d.upsertUser, s.prefix))
}

func (s *SqlStore) stmtUpdateTelegramEnabled() (*sql.Stmt, error) {
	query := fmt.Sprintf(`UPDATE %s SET telegram_enabled = ?, log_level = ? WHERE telegram_id = ?`, s.table("users"))
	return s.prepareStmt("updateTelegramEnabled", query)
}
