package reminder

import (
	"bytes"
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/shaho/internal/lock"
	"github.com/hitoshi/shaho/internal/model"
)

var jst = time.FixedZone("JST", 9*60*60)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// at はJSTの日時を返す。
func at(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 0, 0, 0, jst)
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

// --- モック ---

type mockApplicationRepo struct {
	apps              []*model.Application
	findByIDFn        func(ctx context.Context, id string) (*model.Application, error)
	listFn            func(ctx context.Context, orgID string, filter model.ApplicationFilter) ([]*model.Application, error)
	updateDeadlinesFn func(ctx context.Context, id string, legalDeadline *time.Time, payload model.Payload) error

	mu      sync.Mutex
	updated map[string]model.Payload
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*model.Application, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	for _, a := range m.apps {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, nil
}

func (m *mockApplicationRepo) ListByOrganization(ctx context.Context, orgID string, filter model.ApplicationFilter) ([]*model.Application, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID, filter)
	}
	var out []*model.Application
	for _, a := range m.apps {
		if a.OrganizationID != orgID {
			continue
		}
		if filter.Category != "" && a.Category != filter.Category {
			continue
		}
		if filter.EmployeeID != "" && a.EmployeeID != filter.EmployeeID {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				if a.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockApplicationRepo) UpdateDeadlines(ctx context.Context, id string, legalDeadline *time.Time, payload model.Payload) error {
	if m.updateDeadlinesFn != nil {
		return m.updateDeadlinesFn(ctx, id, legalDeadline, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updated == nil {
		m.updated = make(map[string]model.Payload)
	}
	m.updated[id] = payload
	return nil
}

type mockEmployeeRepo struct {
	employees []*model.Employee
	listFn    func(ctx context.Context, orgID string) ([]*model.Employee, error)
}

func (m *mockEmployeeRepo) FindByID(ctx context.Context, id string) (*model.Employee, error) {
	for _, e := range m.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockEmployeeRepo) ListByOrganization(ctx context.Context, orgID string) ([]*model.Employee, error) {
	if m.listFn != nil {
		return m.listFn(ctx, orgID)
	}
	var out []*model.Employee
	for _, e := range m.employees {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockOrganizationRepo struct {
	configs map[string]*model.OrganizationConfig
}

func (m *mockOrganizationRepo) FindConfig(ctx context.Context, orgID string) (*model.OrganizationConfig, error) {
	return m.configs[orgID], nil
}

func (m *mockOrganizationRepo) ListIDsWithReminderSettings(ctx context.Context) ([]string, error) {
	var ids []string
	for id, c := range m.configs {
		if c.ReminderSettings != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memNotificationRepo はメモリ上の通知ストア。
type memNotificationRepo struct {
	mu       sync.Mutex
	items    []*model.Notification
	createFn func(ctx context.Context, n *model.Notification) error
	// beforeList はListByUserの取得前に呼ばれる（競合の再現用）。
	beforeList func()
}

func (m *memNotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	if m.createFn != nil {
		if err := m.createFn(ctx, n); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *n
	m.items = append(m.items, &cp)
	return nil
}

func (m *memNotificationRepo) ListByUser(ctx context.Context, userID, orgID string, filter model.NotificationFilter) ([]*model.Notification, error) {
	if m.beforeList != nil {
		m.beforeList()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Notification
	for _, n := range m.items {
		if n.UserID != userID || n.OrganizationID != orgID {
			continue
		}
		if !filter.CreatedFrom.IsZero() && n.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && !n.CreatedAt.Before(filter.CreatedTo) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memNotificationRepo) all() []*model.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.Notification(nil), m.items...)
}

func (m *memNotificationRepo) forUser(userID string) []*model.Notification {
	var out []*model.Notification
	for _, n := range m.all() {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

type mockUserDirectory struct {
	admins          map[string][]string
	employeeUsers   map[string]string
	findByEmployeFn func(ctx context.Context, employeeID string) (string, error)
}

func (m *mockUserDirectory) FindByID(ctx context.Context, id string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserDirectory) FindUserIDByEmployeeID(ctx context.Context, employeeID string) (string, error) {
	if m.findByEmployeFn != nil {
		return m.findByEmployeFn(ctx, employeeID)
	}
	return m.employeeUsers[employeeID], nil
}

func (m *mockUserDirectory) ListAdminUserIDs(ctx context.Context, orgID string) ([]string, error) {
	return m.admins[orgID], nil
}

// nopLocker はロックを行わないLocker（並行実行時の重複を再現するため）。
type nopLocker struct{}

type nopRelease struct{}

func (nopRelease) Unlock(context.Context) error { return nil }

func (nopLocker) TryLock(context.Context, string) (lock.Releaser, bool, error) {
	return nopRelease{}, true, nil
}

func (nopLocker) Lock(context.Context, string) (lock.Releaser, error) {
	return nopRelease{}, nil
}
