package reminder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/shaho/internal/deadline"
	"github.com/hitoshi/shaho/internal/event"
	"github.com/hitoshi/shaho/internal/lock"
	"github.com/hitoshi/shaho/internal/metrics"
	"github.com/hitoshi/shaho/internal/model"
	"github.com/hitoshi/shaho/internal/repository"
	"github.com/hitoshi/shaho/internal/security"
)

var (
	// ErrRunInProgress は同じ組織のリマインダー評価が実行中であることを示す。
	ErrRunInProgress = errors.New("reminder run already in progress for organization")
	// ErrOrganizationNotFound は組織が存在しないことを示す。
	ErrOrganizationNotFound = errors.New("organization not found")
	// ErrEmployeeNotFound は従業員が存在しないことを示す。
	ErrEmployeeNotFound = errors.New("employee not found")
	// ErrApplicationNotFound は申請が存在しないことを示す。
	ErrApplicationNotFound = errors.New("application not found")
)

// 失敗段階のメトリクスラベル。
const (
	stageUpdateDeadlines    = "update_deadlines"
	stageResolveRecipient   = "resolve_recipient"
	stageDuplicateCheck     = "duplicate_check"
	stageCreateNotification = "create_notification"
	stagePublishEvent       = "publish_event"
)

// RunOptions はリマインダー評価パスの実行オプション。
type RunOptions struct {
	// SkipDuplicateCheck は重複判定を行わずに通知を作成する（管理者による手動実行用）。
	SkipDuplicateCheck bool
	// WaitForLock は組織ロックが保持されている場合に解放を待つ。
	// falseの場合はErrRunInProgressを返す。
	WaitForLock bool
}

// RunResult は評価パスの集計結果。
type RunResult struct {
	Evaluated  int `json:"evaluated"`
	Created    int `json:"created"`
	Suppressed int `json:"suppressed"`
	Failed     int `json:"failed"`
}

// Dependencies はOrchestratorが利用するコラボレーター。
// Calculator・Evaluator・Gate・Locker以外はnilの場合に無効化またはデフォルト実装を使う。
type Dependencies struct {
	Applications  repository.ApplicationRepository
	Employees     repository.EmployeeRepository
	Organizations repository.OrganizationRepository
	Notifications repository.NotificationRepository
	Users         repository.UserDirectory
	Calculator    *deadline.Calculator
	Evaluator     *Evaluator
	Gate          *Gate
	Locker        lock.Locker
	Publisher     event.Publisher
	Metrics       metrics.MetricsCollector
	Sanitizer     security.TextSanitizer
	Logger        *slog.Logger
	Now           func() time.Time
	NewID         func() string
}

// Orchestrator は組織単位でリマインダー評価を駆動し、通知を作成する。
type Orchestrator struct {
	applications  repository.ApplicationRepository
	employees     repository.EmployeeRepository
	organizations repository.OrganizationRepository
	notifications repository.NotificationRepository
	users         repository.UserDirectory
	calc          *deadline.Calculator
	evaluator     *Evaluator
	gate          *Gate
	locker        lock.Locker
	publisher     event.Publisher
	metrics       metrics.MetricsCollector
	sanitizer     security.TextSanitizer
	logger        *slog.Logger
	now           func() time.Time
	newID         func() string
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(deps Dependencies) *Orchestrator {
	o := &Orchestrator{
		applications:  deps.Applications,
		employees:     deps.Employees,
		organizations: deps.Organizations,
		notifications: deps.Notifications,
		users:         deps.Users,
		calc:          deps.Calculator,
		evaluator:     deps.Evaluator,
		gate:          deps.Gate,
		locker:        deps.Locker,
		publisher:     deps.Publisher,
		metrics:       deps.Metrics,
		sanitizer:     deps.Sanitizer,
		logger:        deps.Logger,
		now:           deps.Now,
		newID:         deps.NewID,
	}
	if o.publisher == nil {
		o.publisher = event.NopPublisher{}
	}
	if o.metrics == nil {
		o.metrics = metrics.Nop{}
	}
	if o.sanitizer == nil {
		o.sanitizer = security.NewTextSanitizer()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newID == nil {
		o.newID = func() string { return uuid.New().String() }
	}
	return o
}

// runScope は1回の評価パスの対象範囲とパス中に共有する状態。
type runScope struct {
	cfg        *model.OrganizationConfig
	settings   model.ReminderSettings
	employeeID string
	admins     []string
	employees  map[string]*model.Employee
	ordered    []*model.Employee
	stored     map[virtualKey]bool
	sent       map[virtualKey]bool
	opts       RunOptions
	now        time.Time
	result     RunResult
}

// RunOrganization は組織全体のリマインダー評価パスを実行する。
// リマインダー設定が未登録の組織では何もしない。
func (o *Orchestrator) RunOrganization(ctx context.Context, organizationID string, opts RunOptions) (RunResult, error) {
	return o.run(ctx, organizationID, "", opts)
}

// RunEmployee は従業員の入社日・退職日の変更を契機に、その従業員に関する評価パスを実行する。
func (o *Orchestrator) RunEmployee(ctx context.Context, organizationID, employeeID string, opts RunOptions) (RunResult, error) {
	if employeeID == "" {
		return RunResult{}, ErrEmployeeNotFound
	}
	return o.run(ctx, organizationID, employeeID, opts)
}

func (o *Orchestrator) run(ctx context.Context, organizationID, employeeID string, opts RunOptions) (RunResult, error) {
	release, err := o.acquire(ctx, organizationID, opts.WaitForLock)
	if err != nil {
		return RunResult{}, err
	}
	defer func() {
		if err := release.Unlock(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn("組織ロックの解放に失敗しました",
				slog.String("organization_id", organizationID),
				slog.String("error", err.Error()),
			)
		}
	}()

	start := time.Now()
	defer func() { o.metrics.RecordRunDuration(time.Since(start)) }()

	scope, err := o.load(ctx, organizationID, employeeID, opts)
	if err != nil || scope == nil {
		return RunResult{}, err
	}

	filter := model.ApplicationFilter{Statuses: model.AwaitingStatuses, EmployeeID: employeeID}
	apps, err := o.applications.ListByOrganization(ctx, organizationID, filter)
	if err != nil {
		return RunResult{}, fmt.Errorf("対応待ち申請の取得に失敗しました: %w", err)
	}

	for _, app := range apps {
		if ctx.Err() != nil {
			return scope.result, ctx.Err()
		}
		o.evaluateStored(ctx, scope, app)
	}

	for _, emp := range scope.ordered {
		if ctx.Err() != nil {
			return scope.result, ctx.Err()
		}
		o.evaluateEmployee(ctx, scope, emp)
	}

	o.logger.Info("リマインダー評価が完了しました",
		slog.String("organization_id", organizationID),
		slog.String("employee_id", employeeID),
		slog.Int("evaluated", scope.result.Evaluated),
		slog.Int("created", scope.result.Created),
		slog.Int("suppressed", scope.result.Suppressed),
		slog.Int("failed", scope.result.Failed),
		slog.Bool("skip_duplicate_check", opts.SkipDuplicateCheck),
	)
	return scope.result, nil
}

func (o *Orchestrator) acquire(ctx context.Context, organizationID string, wait bool) (lock.Releaser, error) {
	key := lock.OrganizationKey(organizationID)
	if wait {
		r, err := o.locker.Lock(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("組織ロックの取得に失敗しました: %w", err)
		}
		return r, nil
	}
	r, ok, err := o.locker.TryLock(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("組織ロックの取得に失敗しました: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}
	return r, nil
}

// load は評価パスに必要な組織設定・管理者・従業員・外部申請を読み込む。
// リマインダー設定が未登録の場合はnil, nilを返す。
func (o *Orchestrator) load(ctx context.Context, organizationID, employeeID string, opts RunOptions) (*runScope, error) {
	cfg, err := o.organizations.FindConfig(ctx, organizationID)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, ErrOrganizationNotFound
	}
	if cfg.ReminderSettings == nil {
		o.logger.Info("リマインダー設定が未登録のため評価をスキップします",
			slog.String("organization_id", organizationID),
		)
		return nil, nil
	}

	scope := &runScope{
		cfg:        cfg,
		settings:   *cfg.ReminderSettings,
		employeeID: employeeID,
		employees:  make(map[string]*model.Employee),
		stored:     make(map[virtualKey]bool),
		sent:       make(map[virtualKey]bool),
		opts:       opts,
		now:        o.now(),
	}

	if employeeID != "" {
		emp, err := o.employees.FindByID(ctx, employeeID)
		if err != nil {
			return nil, err
		}
		if emp == nil || emp.OrganizationID != organizationID {
			return nil, ErrEmployeeNotFound
		}
		scope.employees[emp.ID] = emp
		scope.ordered = append(scope.ordered, emp)
	} else {
		emps, err := o.employees.ListByOrganization(ctx, organizationID)
		if err != nil {
			return nil, err
		}
		for _, emp := range emps {
			scope.employees[emp.ID] = emp
		}
		scope.ordered = emps
	}

	admins, err := o.users.ListAdminUserIDs(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("管理者一覧の取得に失敗しました: %w", err)
	}
	scope.admins = admins

	externals, err := o.applications.ListByOrganization(ctx, organizationID, model.ApplicationFilter{
		Category:   model.CategoryExternal,
		EmployeeID: employeeID,
	})
	if err != nil {
		return nil, fmt.Errorf("外部申請の取得に失敗しました: %w", err)
	}
	for _, app := range externals {
		key := virtualKey{employeeID: app.EmployeeID, typeCode: app.TypeCode}
		scope.stored[key] = true
		if app.IsExternalSent() {
			scope.sent[key] = true
		}
	}

	return scope, nil
}

// evaluateStored は保存済みの申請1件を評価する。失敗はログに記録して集計し、呼び出し元には返さない。
func (o *Orchestrator) evaluateStored(ctx context.Context, scope *runScope, app *model.Application) {
	logger := o.logger.With(
		slog.String("organization_id", app.OrganizationID),
		slog.String("application_id", app.ID),
		slog.String("employee_id", app.EmployeeID),
	)

	if scope.sent[virtualKey{employeeID: app.EmployeeID, typeCode: app.TypeCode}] {
		scope.result.Suppressed++
		o.metrics.RecordReminderSuppressed(metrics.SuppressExternalSent)
		return
	}
	scope.result.Evaluated++

	appType := scope.cfg.TypeByCode(app.TypeCode)
	computed := o.calc.Compute(app, appType)
	failed := false

	if deadlinesChanged(app, computed) {
		if err := o.applications.UpdateDeadlines(ctx, app.ID, computed.LegalDeadline, computed.Payload); err != nil {
			failed = true
			o.metrics.RecordReminderFailure(stageUpdateDeadlines)
			logger.Error("期限の書き込みに失敗しました", slog.String("error", err.Error()))
		}
	}

	subject := o.subject(scope, app, appType, computed.EffectiveLegalDeadline(), false)
	if !o.deliver(ctx, scope, subject, logger) {
		failed = true
	}
	if failed {
		scope.result.Failed++
	}
}

// evaluateEmployee は申請が未登録の(従業員, 外部申請種別)について仮想申請を評価する。
func (o *Orchestrator) evaluateEmployee(ctx context.Context, scope *runScope, emp *model.Employee) {
	for _, appType := range scope.cfg.ExternalTypes() {
		key := virtualKey{employeeID: emp.ID, typeCode: appType.Code}
		if scope.stored[key] {
			continue
		}
		app := NewVirtualApplication(emp, appType, scope.now)
		if app == nil {
			continue
		}
		scope.result.Evaluated++

		logger := o.logger.With(
			slog.String("organization_id", emp.OrganizationID),
			slog.String("employee_id", emp.ID),
			slog.String("type_code", appType.Code),
		)
		computed := o.calc.Compute(app, &appType)
		subject := o.subject(scope, app, &appType, computed.EffectiveLegalDeadline(), true)
		if !o.deliver(ctx, scope, subject, logger) {
			scope.result.Failed++
		}
	}
}

func (o *Orchestrator) subject(scope *runScope, app *model.Application, appType *model.ApplicationType, legal *time.Time, virtual bool) Subject {
	typeName := app.TypeCode
	if appType != nil && appType.Name != "" {
		typeName = appType.Name
	}
	var employeeName string
	if emp, ok := scope.employees[app.EmployeeID]; ok {
		employeeName = emp.Name
	}
	return Subject{
		Application:   app,
		Virtual:       virtual,
		LegalDeadline: legal,
		TypeName:      o.sanitizer.Sanitize(typeName),
		EmployeeName:  o.sanitizer.Sanitize(employeeName),
	}
}

// deliver は対象のリマインダーを判定し、宛先ごとに通知を作成する。
// いずれかの処理が失敗した場合はfalseを返す。
func (o *Orchestrator) deliver(ctx context.Context, scope *runScope, s Subject, logger *slog.Logger) bool {
	ok := true
	for _, r := range o.evaluator.Evaluate(s, scope.settings, scope.now) {
		recipients, err := o.recipients(ctx, scope, s, r)
		if err != nil {
			ok = false
			o.metrics.RecordReminderFailure(stageResolveRecipient)
			logger.Error("通知先ユーザーの解決に失敗しました",
				slog.String("audience", string(r.Audience)),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(recipients) == 0 {
			scope.result.Suppressed++
			o.metrics.RecordReminderSuppressed(metrics.SuppressNoRecipient)
			logger.Warn("通知先ユーザーが見つかりません",
				slog.String("audience", string(r.Audience)),
				slog.String("category", string(r.Category)),
			)
			continue
		}

		for _, userID := range recipients {
			if !o.notify(ctx, scope, s, r, userID, logger) {
				ok = false
			}
		}
	}
	return ok
}

func (o *Orchestrator) recipients(ctx context.Context, scope *runScope, s Subject, r Reminder) ([]string, error) {
	if r.Audience == AudienceAdmin {
		return scope.admins, nil
	}
	userID, err := o.users.FindUserIDByEmployeeID(ctx, s.Application.EmployeeID)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, nil
	}
	return []string{userID}, nil
}

// notify は重複判定を通過した通知を1件作成する。
func (o *Orchestrator) notify(ctx context.Context, scope *runScope, s Subject, r Reminder, userID string, logger *slog.Logger) bool {
	n := o.buildNotification(scope, s, r, userID)

	send, err := o.gate.ShouldSend(ctx, n, r.Category, scope.now, scope.opts.SkipDuplicateCheck)
	if err != nil {
		o.metrics.RecordReminderFailure(stageDuplicateCheck)
		logger.Error("重複判定に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	if !send {
		scope.result.Suppressed++
		o.metrics.RecordReminderSuppressed(metrics.SuppressDuplicate)
		return true
	}

	if err := o.notifications.Create(ctx, n); err != nil {
		o.metrics.RecordReminderFailure(stageCreateNotification)
		logger.Error("通知の作成に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return false
	}
	scope.result.Created++
	o.metrics.RecordReminderCreated(string(r.Category), string(r.Audience))

	if err := o.publisher.PublishNotificationCreated(ctx, n); err != nil {
		o.metrics.RecordReminderFailure(stagePublishEvent)
		logger.Warn("通知作成イベントの発行に失敗しました",
			slog.String("notification_id", n.ID),
			slog.String("error", err.Error()),
		)
	}
	return true
}

func (o *Orchestrator) buildNotification(scope *runScope, s Subject, r Reminder, userID string) *model.Notification {
	app := s.Application
	n := &model.Notification{
		ID:             o.newID(),
		UserID:         userID,
		OrganizationID: app.OrganizationID,
		Type:           r.Category.NotificationType(),
		Title:          composeTitle(s, r),
		Message:        composeMessage(s, r),
		Priority:       r.Category.Priority(),
		CreatedAt:      scope.now.UTC(),
	}
	if !s.Virtual {
		appID := app.ID
		n.ApplicationID = &appID
	}
	if app.EmployeeID != "" {
		empID := app.EmployeeID
		n.EmployeeID = &empID
	}
	return n
}

// RecomputeDeadlines は申請1件の期限を再計算して保存する。
func (o *Orchestrator) RecomputeDeadlines(ctx context.Context, organizationID, applicationID string) (deadline.Result, error) {
	app, err := o.applications.FindByID(ctx, applicationID)
	if err != nil {
		return deadline.Result{}, err
	}
	if app == nil || app.OrganizationID != organizationID {
		return deadline.Result{}, ErrApplicationNotFound
	}

	cfg, err := o.organizations.FindConfig(ctx, organizationID)
	if err != nil {
		return deadline.Result{}, err
	}
	if cfg == nil {
		return deadline.Result{}, ErrOrganizationNotFound
	}

	computed := o.calc.Compute(app, cfg.TypeByCode(app.TypeCode))
	if err := o.applications.UpdateDeadlines(ctx, app.ID, computed.LegalDeadline, computed.Payload); err != nil {
		return deadline.Result{}, err
	}

	o.logger.Info("申請の期限を再計算しました",
		slog.String("organization_id", organizationID),
		slog.String("application_id", applicationID),
	)
	return computed, nil
}

// deadlinesChanged は算出結果が保存済みの期限と異なるかを返す。
// 期限を持たない申請種別では書き込みを行わない。
func deadlinesChanged(app *model.Application, computed deadline.Result) bool {
	if computed.LegalDeadline == nil && len(computed.ItemDeadlines()) == 0 && app.LegalDeadline == nil {
		return false
	}
	if !sameDate(app.LegalDeadline, computed.LegalDeadline) {
		return true
	}
	before, err1 := model.EncodePayload(app.Payload)
	after, err2 := model.EncodePayload(computed.Payload)
	if err1 != nil || err2 != nil {
		return true
	}
	return !bytes.Equal(before, after)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
