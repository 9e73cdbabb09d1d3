package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudconsole/engine/internal/archive"
	"github.com/cloudconsole/engine/internal/credentials"
	"github.com/cloudconsole/engine/internal/models"
	"github.com/cloudconsole/engine/internal/provisioner"
	"github.com/cloudconsole/engine/internal/provisioner/catalog"
	"github.com/cloudconsole/engine/internal/provisioner/compiler"
	"github.com/cloudconsole/engine/internal/provisioner/terraform"
	"github.com/cloudconsole/engine/internal/provisioner/workspace"
	"github.com/cloudconsole/engine/internal/queue"
	"github.com/cloudconsole/engine/internal/repository"
	"github.com/cloudconsole/engine/internal/tracker"
	appErr "github.com/cloudconsole/engine/pkg/errors"
	"github.com/cloudconsole/engine/pkg/logger"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// DeploymentService is the orchestration facade used by the HTTP layer and the workers.
type DeploymentService interface {
	// Deploy validates and accepts a request and schedules its apply job. It returns the
	// new deployment id without waiting for provisioning.
	Deploy(ctx context.Context, input *DeployInput) (string, error)
	// RunApply is the apply job body.
	RunApply(ctx context.Context, deploymentID string) error

	Destroy(ctx context.Context, deploymentID, accountID string) error
	DestroyResource(ctx context.Context, deploymentID, resourceID string) error

	GetLogs(ctx context.Context, deploymentID string) ([]byte, error)
	// TailLogs returns the last lines of the log.
	TailLogs(ctx context.Context, deploymentID string, lines int) (string, error)
	// ReadLogs returns log bytes appended after offset and the next offset.
	ReadLogs(ctx context.Context, deploymentID string, offset int64) ([]byte, int64, error)
	GetStatus(ctx context.Context, deploymentID string) (*tracker.Entry, error)
	ListDeployments(ctx context.Context) ([]tracker.Entry, error)
	GetResources(ctx context.Context, accountID string) ([]DeploymentResources, error)
}

type DeployInput struct {
	AccountID    string                `json:"accountId" validate:"required"`
	Region       string                `json:"region"`
	Modules      []string              `json:"modules" validate:"required,min=1,dive,required"`
	ModuleConfig compiler.ModuleConfig `json:"moduleConfig"`
}

// DeploymentResources is one deployment's entry in a resource listing.
type DeploymentResources struct {
	DeploymentID string               `json:"deploymentId"`
	Provider     string               `json:"provider"`
	Region       string               `json:"region"`
	Modules      []string             `json:"modules"`
	Status       string               `json:"status"`
	Resources    []terraform.Resource `json:"resources"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// Dependencies wires the facade.
type Dependencies struct {
	Records     repository.DeploymentRepository
	Credentials credentials.Store
	Tracker     *tracker.Tracker
	Workspaces  *workspace.Manager
	Provisioner provisioner.Provisioner
	Logs        *terraform.LogStore
	Dispatcher  queue.Dispatcher
	// Archive is optional.
	Archive archive.Archive
}

type deploymentService struct {
	records    repository.DeploymentRepository
	creds      credentials.Store
	tracker    *tracker.Tracker
	workspaces *workspace.Manager
	prov       provisioner.Provisioner
	logs       *terraform.LogStore
	dispatcher queue.Dispatcher
	archive    archive.Archive
	validate   *validator.Validate
	busy       *inFlight
	now        func() time.Time
}

func NewDeploymentService(deps Dependencies) DeploymentService {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return &deploymentService{
		records:    deps.Records,
		creds:      deps.Credentials,
		tracker:    deps.Tracker,
		workspaces: deps.Workspaces,
		prov:       deps.Provisioner,
		logs:       deps.Logs,
		dispatcher: deps.Dispatcher,
		archive:    deps.Archive,
		validate:   v,
		busy:       &inFlight{ids: map[string]struct{}{}},
		now:        time.Now,
	}
}

var _ DeploymentService = (*deploymentService)(nil)

func (s *deploymentService) Deploy(ctx context.Context, input *DeployInput) (string, error) {
	if input == nil {
		return "", appErr.New(appErr.CodeInvalid, "request body is required")
	}
	if err := s.validate.Struct(input); err != nil {
		return "", invalidInput(err)
	}
	if strings.TrimSpace(input.Region) == "" {
		return "", appErr.New(appErr.CodeInvalid, "region is required").WithMeta("field", "region")
	}

	creds, err := s.loadCredentials(ctx, input.AccountID)
	if err != nil {
		return "", err
	}
	spec, err := catalog.Lookup(creds.Provider)
	if err != nil {
		return "", err
	}

	id := newDeploymentID(spec.Prefix)
	doc, err := compiler.Generate(input.Modules, input.ModuleConfig, accountContext(creds, input.Region, id))
	if err != nil {
		return "", err
	}
	if err := s.workspaces.Library().Check(ctx); err != nil {
		return "", err
	}

	modulesJSON, err := json.Marshal(input.Modules)
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "encode modules failed")
	}
	configJSON, err := json.Marshal(nonNilConfig(input.ModuleConfig))
	if err != nil {
		return "", appErr.Wrap(err, appErr.CodeInvalid, "encode module config failed")
	}

	log := logger.ForDeployment(id)
	rec := &models.Deployment{
		ID:             id,
		AccountID:      input.AccountID,
		Provider:       creds.Provider,
		Region:         doc.Region,
		Modules:        datatypes.JSON(modulesJSON),
		ModuleConfig:   datatypes.JSON(configJSON),
		DocumentDigest: doc.Digest,
		Status:         string(tracker.StatusPending),
		StartedAt:      s.now().UTC(),
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return "", err
	}
	if err := s.tracker.Begin(ctx, id, input.AccountID, creds.Provider); err != nil {
		s.discard(ctx, id, false)
		return "", err
	}
	if err := s.tracker.MarkDeploying(ctx, id); err != nil {
		s.discard(ctx, id, true)
		return "", err
	}
	s.mirrorStatus(ctx, id, tracker.StatusDeploying, "")

	if err := s.dispatcher.Dispatch(ctx, id); err != nil {
		log.Error("dispatch apply job failed", zap.Error(err))
		s.fail(ctx, id, err)
		return "", err
	}

	log.Info("deployment accepted",
		zap.String("account_id", input.AccountID),
		zap.String("provider", creds.Provider),
		zap.String("region", doc.Region),
		zap.Strings("modules", input.Modules),
		zap.String("digest", doc.Digest))
	return id, nil
}

func (s *deploymentService) RunApply(ctx context.Context, id string) error {
	log := logger.ForDeployment(id)
	if !s.busy.acquire(id) {
		return appErr.Newf(appErr.CodeConflict, "deployment %s has an operation in progress", id)
	}
	defer s.busy.release(id)

	rec, err := s.records.GetWithResources(ctx, id)
	if err != nil {
		return err
	}
	if err := s.ensureDeploying(ctx, rec); err != nil {
		return err
	}

	creds, err := s.loadCredentials(ctx, rec.AccountID)
	if err != nil {
		s.abort(ctx, id, "apply", err)
		return err
	}
	doc, err := s.document(rec, creds)
	if err != nil {
		s.abort(ctx, id, "apply", err)
		return err
	}

	log.Info("apply started")
	res, err := s.prov.Apply(ctx, provisioner.Request{
		DeploymentID: id,
		Document:     doc,
		Credentials:  creds,
		State:        rec.TerraformState,
	})
	if err != nil {
		s.snapshotWorkspaceState(ctx, id, doc)
		s.fail(ctx, id, err)
		s.archiveArtifacts(ctx, id, nil)
		log.Warn("apply failed", zap.Error(err))
		return err
	}

	if err := s.records.ReplaceResources(ctx, id, toModels(res.Resources), res.State); err != nil {
		log.Error("persist resources failed", zap.Error(err))
	}
	if err := s.tracker.Succeed(ctx, id); err != nil {
		log.Error("mark success failed", zap.Error(err))
	}
	s.mirrorStatus(ctx, id, tracker.StatusSuccess, "")
	s.archiveArtifacts(ctx, id, res.State)
	log.Info("apply succeeded", zap.Int("resources", len(res.Resources)))
	return nil
}

func (s *deploymentService) Destroy(ctx context.Context, id, accountID string) error {
	log := logger.ForDeployment(id)
	rec, err := s.records.GetWithResources(ctx, id)
	if err != nil {
		return err
	}
	if accountID != "" && rec.AccountID != accountID {
		return appErr.Newf(appErr.CodeForbidden, "deployment %s does not belong to account %s", id, accountID)
	}
	if err := s.refuseWhileRunning(ctx, rec); err != nil {
		return err
	}
	if !s.busy.acquire(id) {
		return appErr.Newf(appErr.CodeConflict, "deployment %s has an operation in progress", id)
	}
	defer s.busy.release(id)

	creds, err := s.loadCredentials(ctx, rec.AccountID)
	if err != nil {
		return err
	}
	doc, err := s.document(rec, creds)
	if err != nil {
		return err
	}

	log.Info("destroy started")
	res, err := s.prov.Destroy(ctx, provisioner.Request{
		DeploymentID: id,
		Document:     doc,
		Credentials:  creds,
		State:        rec.TerraformState,
	})
	if err != nil {
		s.recordError(ctx, id, err)
		log.Warn("destroy failed", zap.Error(err))
		return err
	}

	if err := s.tracker.Destroyed(ctx, id, rec.AccountID); err != nil {
		log.Error("mark destroyed failed", zap.Error(err))
	}
	var state []byte
	if res != nil {
		state = res.State
	}
	s.archiveArtifacts(ctx, id, state)
	if err := s.logs.Remove(id); err != nil {
		log.Warn("remove log failed", zap.Error(err))
	}
	if err := s.workspaces.Release(id); err != nil {
		log.Warn("release workspace failed", zap.Error(err))
	}
	if err := s.records.Purge(ctx, id); err != nil {
		return err
	}
	log.Info("deployment destroyed")
	return nil
}

func (s *deploymentService) DestroyResource(ctx context.Context, id, resourceID string) error {
	log := logger.ForDeployment(id)
	if strings.TrimSpace(resourceID) == "" {
		return appErr.New(appErr.CodeInvalid, "resourceId is required").WithMeta("field", "resourceId")
	}
	rec, err := s.records.GetWithResources(ctx, id)
	if err != nil {
		return err
	}
	address := ""
	for _, r := range rec.Resources {
		if r.Address == resourceID || r.ID == resourceID {
			address = r.Address
			break
		}
	}
	if address == "" {
		return appErr.Newf(appErr.CodeNotFound, "resource %s not found in deployment %s", resourceID, id)
	}
	if err := s.refuseWhileRunning(ctx, rec); err != nil {
		return err
	}
	if !s.busy.acquire(id) {
		return appErr.Newf(appErr.CodeConflict, "deployment %s has an operation in progress", id)
	}
	defer s.busy.release(id)

	creds, err := s.loadCredentials(ctx, rec.AccountID)
	if err != nil {
		return err
	}
	doc, err := s.document(rec, creds)
	if err != nil {
		return err
	}

	log.Info("targeted destroy started", zap.String("address", address))
	res, err := s.prov.Destroy(ctx, provisioner.Request{
		DeploymentID: id,
		Document:     doc,
		Credentials:  creds,
		State:        rec.TerraformState,
		Target:       address,
	})
	if err != nil {
		s.recordError(ctx, id, err)
		return err
	}

	var state []byte
	if res != nil {
		state = res.State
	}
	if err := s.records.DeleteResource(ctx, id, address, state); err != nil {
		return err
	}
	log.Info("resource destroyed", zap.String("address", address))
	return nil
}

func (s *deploymentService) GetLogs(ctx context.Context, id string) ([]byte, error) {
	if err := workspace.ValidateID(id); err != nil {
		return nil, err
	}
	return s.logs.Read(id)
}

func (s *deploymentService) TailLogs(ctx context.Context, id string, lines int) (string, error) {
	if err := workspace.ValidateID(id); err != nil {
		return "", err
	}
	if lines <= 0 {
		return "", appErr.New(appErr.CodeInvalid, "tail must be a positive number of lines").WithMeta("field", "tail")
	}
	return s.logs.Tail(id, lines)
}

func (s *deploymentService) ReadLogs(ctx context.Context, id string, offset int64) ([]byte, int64, error) {
	if err := workspace.ValidateID(id); err != nil {
		return nil, offset, err
	}
	return s.logs.ReadFrom(id, offset)
}

func (s *deploymentService) GetStatus(ctx context.Context, id string) (*tracker.Entry, error) {
	e, err := s.tracker.Status(ctx, id)
	if err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
		return nil, err
	}
	var rec models.Deployment
	if recErr := s.records.GetByID(ctx, id, &rec); recErr != nil {
		if err == nil {
			return e, nil
		}
		return nil, recErr
	}
	if err == nil {
		return s.settle(ctx, e, &rec), nil
	}
	entry := recordEntry(rec)
	return &entry, nil
}

// ListDeployments merges tracked entries, durable records the tracker lost, and
// workspaces on disk that match neither. The last are reported as unknown with no owner.
func (s *deploymentService) ListDeployments(ctx context.Context) ([]tracker.Entry, error) {
	entries, err := s.tracker.List(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.records.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Deployment, len(recs))
	for i := range recs {
		byID[recs[i].ID] = &recs[i]
	}

	seen := make(map[string]bool, len(entries))
	for i := range entries {
		seen[entries[i].ID] = true
		if rec, ok := byID[entries[i].ID]; ok {
			entries[i] = *s.settle(ctx, &entries[i], rec)
		}
	}
	for _, r := range recs {
		if !seen[r.ID] {
			entries = append(entries, recordEntry(r))
			seen[r.ID] = true
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].StartedAt.Equal(entries[j].StartedAt) {
			return entries[i].StartedAt.Before(entries[j].StartedAt)
		}
		return entries[i].ID < entries[j].ID
	})

	namespaces, err := s.workspaces.List()
	if err != nil {
		logger.L().Warn("list workspaces failed", zap.Error(err))
	}
	for _, ns := range namespaces {
		if !seen[ns] {
			e := tracker.Entry{ID: ns, Status: tracker.StatusUnknown}
			if spec, ok := catalog.ForDeploymentID(ns); ok {
				e.Provider = string(spec.Name)
			}
			entries = append(entries, e)
		}
	}
	if entries == nil {
		entries = []tracker.Entry{}
	}
	return entries, nil
}

func (s *deploymentService) GetResources(ctx context.Context, accountID string) ([]DeploymentResources, error) {
	if strings.TrimSpace(accountID) == "" {
		return nil, appErr.New(appErr.CodeInvalid, "accountId is required").WithMeta("field", "accountId")
	}
	recs, err := s.records.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]DeploymentResources, 0, len(recs))
	for _, r := range recs {
		var modules []string
		if len(r.Modules) > 0 {
			_ = json.Unmarshal(r.Modules, &modules)
		}
		out = append(out, DeploymentResources{
			DeploymentID: r.ID,
			Provider:     r.Provider,
			Region:       r.Region,
			Modules:      modules,
			Status:       r.Status,
			Resources:    fromModels(r.Resources),
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

func (s *deploymentService) loadCredentials(ctx context.Context, accountID string) (*credentials.Credentials, error) {
	c, err := s.creds.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		logger.L().Warn("incomplete account credentials",
			zap.String("account_id", accountID), zap.Any("credentials", c.Redacted()), zap.Error(err))
		return nil, err
	}
	return c, nil
}

// document regenerates the stored request. The workspace of a finished deployment may
// have been cleaned up, so the record is the source of truth.
func (s *deploymentService) document(rec *models.Deployment, creds *credentials.Credentials) (*compiler.Document, error) {
	var modules []string
	if err := json.Unmarshal(rec.Modules, &modules); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInternal, "decode stored modules failed")
	}
	var cfg compiler.ModuleConfig
	if len(rec.ModuleConfig) > 0 {
		if err := json.Unmarshal(rec.ModuleConfig, &cfg); err != nil {
			return nil, appErr.Wrap(err, appErr.CodeInternal, "decode stored module config failed")
		}
	}
	doc, err := compiler.Generate(modules, cfg, accountContext(creds, rec.Region, rec.ID))
	if err != nil {
		return nil, err
	}
	if rec.DocumentDigest != "" && doc.Digest != rec.DocumentDigest {
		logger.ForDeployment(rec.ID).Warn("regenerated document differs from the accepted one",
			zap.String("stored", rec.DocumentDigest), zap.String("current", doc.Digest))
	}
	return doc, nil
}

func (s *deploymentService) ensureDeploying(ctx context.Context, rec *models.Deployment) error {
	e, err := s.tracker.Status(ctx, rec.ID)
	if appErr.IsCode(err, appErr.CodeNotFound) {
		// worker process with its own tracker
		if tracker.Status(rec.Status).Terminal() {
			return appErr.Newf(appErr.CodeConflict, "deployment %s is already %s", rec.ID, rec.Status)
		}
		if err := s.tracker.Begin(ctx, rec.ID, rec.AccountID, rec.Provider); err != nil {
			return err
		}
		return s.tracker.MarkDeploying(ctx, rec.ID)
	}
	if err != nil {
		return err
	}
	switch e.Status {
	case tracker.StatusPending:
		return s.tracker.MarkDeploying(ctx, rec.ID)
	case tracker.StatusDeploying:
		return nil
	default:
		return appErr.Newf(appErr.CodeConflict, "deployment %s is already %s", rec.ID, e.Status)
	}
}

func (s *deploymentService) refuseWhileRunning(ctx context.Context, rec *models.Deployment) error {
	status := tracker.Status(rec.Status)
	if e, err := s.tracker.Status(ctx, rec.ID); err == nil {
		status = s.settle(ctx, e, rec).Status
	}
	if status == tracker.StatusPending || status == tracker.StatusDeploying {
		return appErr.Newf(appErr.CodeConflict, "deployment %s is still %s", rec.ID, status).
			WithMeta("status", string(status))
	}
	return nil
}

// settle prefers the record over a tracked entry that is still running once the record
// is terminal. The job then ran in another process, so the local tracker is caught up.
func (s *deploymentService) settle(ctx context.Context, e *tracker.Entry, rec *models.Deployment) *tracker.Entry {
	if e.Status != tracker.StatusPending && e.Status != tracker.StatusDeploying {
		return e
	}
	final := tracker.Status(rec.Status)
	if !final.Terminal() {
		return e
	}
	log := logger.ForDeployment(rec.ID)
	var err error
	switch final {
	case tracker.StatusSuccess:
		if e.Status == tracker.StatusPending {
			err = s.tracker.MarkDeploying(ctx, rec.ID)
		}
		if err == nil {
			err = s.tracker.Succeed(ctx, rec.ID)
		}
	case tracker.StatusFailed:
		err = s.tracker.Fail(ctx, rec.ID, rec.Error)
	}
	if err != nil {
		log.Debug("catch up tracker failed", zap.String("status", rec.Status), zap.Error(err))
	}
	entry := recordEntry(*rec)
	return &entry
}

// discard drops a record whose tracking could not start.
func (s *deploymentService) discard(ctx context.Context, id string, tracked bool) {
	log := logger.ForDeployment(id)
	if tracked {
		if err := s.tracker.Forget(ctx, id); err != nil {
			log.Warn("forget tracker entry failed", zap.Error(err))
		}
	}
	if err := s.records.Purge(ctx, id); err != nil {
		log.Warn("purge record failed", zap.Error(err))
	}
}

func (s *deploymentService) fail(ctx context.Context, id string, cause error) {
	msg := failureMessage(cause)
	if err := s.tracker.Fail(ctx, id, msg); err != nil {
		logger.ForDeployment(id).Error("mark failed failed", zap.Error(err))
	}
	s.mirrorStatus(ctx, id, tracker.StatusFailed, msg)
}

// abort fails a deployment whose job stopped before any process ran, leaving a line in
// its log so the failure is visible there too.
func (s *deploymentService) abort(ctx context.Context, id, op string, cause error) {
	if stream, err := s.logs.Open(id); err == nil {
		stream.Printf("==> %s aborted: %s", op, failureMessage(cause))
		_ = stream.Close()
	}
	s.fail(ctx, id, cause)
}

func (s *deploymentService) recordError(ctx context.Context, id string, cause error) {
	msg := failureMessage(cause)
	if err := s.tracker.RecordError(ctx, id, msg); err != nil && !appErr.IsCode(err, appErr.CodeNotFound) {
		logger.ForDeployment(id).Error("record error failed", zap.Error(err))
	}
	var rec models.Deployment
	if err := s.records.GetByID(ctx, id, &rec); err == nil {
		_ = s.records.UpdateStatus(ctx, id, rec.Status, msg)
	}
}

func (s *deploymentService) mirrorStatus(ctx context.Context, id string, status tracker.Status, msg string) {
	if err := s.records.UpdateStatus(ctx, id, string(status), msg); err != nil {
		logger.ForDeployment(id).Warn("update record status failed", zap.String("status", string(status)), zap.Error(err))
	}
}

func (s *deploymentService) snapshotWorkspaceState(ctx context.Context, id string, doc *compiler.Document) {
	spec, err := catalog.Lookup(string(doc.Provider))
	if err != nil {
		return
	}
	state, err := os.ReadFile(provisioner.StatePath(spec, s.workspaces.Dir(id), id))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.ForDeployment(id).Warn("read workspace state failed", zap.Error(err))
		}
		return
	}
	if err := s.records.SaveState(ctx, id, state); err != nil {
		logger.ForDeployment(id).Warn("save state snapshot failed", zap.Error(err))
	}
}

func (s *deploymentService) archiveArtifacts(ctx context.Context, id string, state []byte) {
	if s.archive == nil {
		return
	}
	log := logger.ForDeployment(id)
	if content, err := s.logs.Read(id); err == nil {
		if err := s.archive.Put(ctx, archive.LogKey(id), bytes.NewReader(content)); err != nil {
			log.Warn("archive log failed", zap.String("backend", s.archive.Type()), zap.Error(err))
		}
	}
	if len(state) > 0 {
		if err := s.archive.Put(ctx, archive.StateKey(id), bytes.NewReader(state)); err != nil {
			log.Warn("archive state failed", zap.String("backend", s.archive.Type()), zap.Error(err))
		}
	}
}

func accountContext(c *credentials.Credentials, region, id string) compiler.AccountContext {
	return compiler.AccountContext{
		Provider:       c.Provider,
		Region:         region,
		ProjectID:      c.ProjectID,
		SubscriptionID: c.SubscriptionID,
		DeploymentID:   id,
	}
}

// newDeploymentID returns <prefix>-<12 hex>. The id doubles as the tool workspace name.
func newDeploymentID(prefix string) string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + hex[:12]
}

func nonNilConfig(c compiler.ModuleConfig) compiler.ModuleConfig {
	if c == nil {
		return compiler.ModuleConfig{}
	}
	return c
}

func recordEntry(r models.Deployment) tracker.Entry {
	return tracker.Entry{
		ID:          r.ID,
		AccountID:   r.AccountID,
		Provider:    r.Provider,
		Status:      tracker.Status(r.Status),
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
		Error:       r.Error,
	}
}

func toModels(in []terraform.Resource) []models.Resource {
	out := make([]models.Resource, 0, len(in))
	for _, r := range in {
		attrs, err := json.Marshal(r.Attributes)
		if err != nil {
			attrs = []byte("{}")
		}
		out = append(out, models.Resource{
			Address:    r.ID,
			Name:       r.Name,
			Type:       r.Type,
			Provider:   r.Provider,
			Status:     r.Status,
			Attributes: datatypes.JSON(attrs),
		})
	}
	return out
}

func fromModels(in []models.Resource) []terraform.Resource {
	out := make([]terraform.Resource, 0, len(in))
	for _, r := range in {
		var attrs map[string]any
		if len(r.Attributes) > 0 {
			_ = json.Unmarshal(r.Attributes, &attrs)
		}
		out = append(out, terraform.Resource{
			ID:         r.Address,
			Name:       r.Name,
			Type:       r.Type,
			Provider:   r.Provider,
			Status:     r.Status,
			Attributes: attrs,
		})
	}
	return out
}

// failureMessage is the cause followed by the log tail of a failed tool run.
func failureMessage(err error) string {
	msg := err.Error()
	var ae *appErr.AppError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	var pf *terraform.ProvisionFailure
	if errors.As(err, &pf) {
		if tail := strings.TrimRight(pf.Tail, "\n"); tail != "" {
			msg += "\n" + tail
		}
	}
	return msg
}

func invalidInput(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		return appErr.Newf(appErr.CodeInvalid, "%s is invalid: failed %q", field, fe.Tag()).
			WithMeta("field", field)
	}
	return appErr.Wrap(err, appErr.CodeInvalid, "invalid request")
}

type inFlight struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func (f *inFlight) acquire(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ids[id]; ok {
		return false
	}
	f.ids[id] = struct{}{}
	return true
}

func (f *inFlight) release(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.ids, id)
}
