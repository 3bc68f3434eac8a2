package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/zhejian/url-shortener/qrform/internal/auth"
	"github.com/zhejian/url-shortener/qrform/internal/creation"
	"github.com/zhejian/url-shortener/qrform/internal/events"
	"github.com/zhejian/url-shortener/qrform/internal/model"
	"github.com/zhejian/url-shortener/qrform/internal/observability"
	"github.com/zhejian/url-shortener/qrform/internal/payload"
	"github.com/zhejian/url-shortener/qrform/internal/qr"
	"github.com/zhejian/url-shortener/qrform/internal/repository"
)

var (
	ErrResultNotFound      = errors.New("result not found")
	ErrLoginRequired       = errors.New("login required")
	ErrCreationRejected    = errors.New("creation rejected")
	ErrCreationUnavailable = errors.New("creation service unavailable")
	ErrCreationFailed      = errors.New("creation failed")
	ErrInvalidSize         = errors.New("invalid image size")
)

// RejectionError carries the creation service's message for a rejected
// request. It matches ErrLoginRequired when the service asked for a login
// and ErrCreationRejected otherwise.
type RejectionError struct {
	Message   string
	NeedLogin bool
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Is(target error) bool {
	if e.NeedLogin {
		return target == ErrLoginRequired
	}
	return target == ErrCreationRejected
}

// Creator sends validated requests to the creation service
type Creator interface {
	Create(ctx context.Context, req *payload.CreationRequest, caller auth.Context) (*model.CreationResult, error)
}

// FormServiceInterface defines the operations behind the creation form
type FormServiceInterface interface {
	Submit(ctx context.Context, in SubmitInput) (*model.SubmitResponse, error)
	Result(ctx context.Context, code string) (*model.ResultResponse, error)
	History(ctx context.Context, sessionID string, limit int) ([]model.ResultResponse, error)
	QRCode(ctx context.Context, code string, size int) ([]byte, error)
	Form(caller auth.Context, kind string) (*model.FormSchema, error)
	Remove(ctx context.Context, sessionID, code string) error
}

// SubmitInput is one form submission
type SubmitInput struct {
	Form      payload.FormState
	Caller    auth.Context
	SessionID string
}

// Options tunes a FormService. Zero values select defaults.
type Options struct {
	QRSize       int
	HistoryLimit int
	Now          func() time.Time
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// FormService handles form submissions and the copy/download affordances
type FormService struct {
	builder      *payload.Builder
	creator      Creator
	repo         repository.ResultRepositoryInterface
	publisher    events.Publisher
	renderer     *qr.Renderer
	metrics      *observability.Metrics
	logger       *slog.Logger
	now          func() time.Time
	qrSize       int
	historyLimit int
}

// NewFormService creates a new form service
func NewFormService(creator Creator, repo repository.ResultRepositoryInterface, publisher events.Publisher, renderer *qr.Renderer, opts Options) *FormService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.QRSize == 0 {
		opts.QRSize = qr.DefaultSize
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &FormService{
		builder:      payload.NewBuilder(opts.Now),
		creator:      creator,
		repo:         repo,
		publisher:    publisher,
		renderer:     renderer,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
		now:          opts.Now,
		qrSize:       opts.QRSize,
		historyLimit: opts.HistoryLimit,
	}
}

// Submit validates the form, calls the creation service and keeps the
// result for later copy/download. Builder errors are returned unchanged.
func (s *FormService) Submit(ctx context.Context, in SubmitInput) (*model.SubmitResponse, error) {
	req, err := s.builder.Build(in.Form, in.Caller)
	if err != nil {
		s.metrics.ObserveBuild(kindLabel(in.Form.Kind), buildOutcome(err))
		return nil, err
	}
	s.metrics.ObserveBuild(string(req.Kind), "ok")

	created, err := s.creator.Create(ctx, req, in.Caller)
	if err != nil {
		return nil, mapCreationError(err)
	}

	result := &model.Result{
		ID:        uuid.New(),
		SessionID: in.SessionID,
		Code:      created.Code,
		ShortURL:  created.ShortURL,
		Kind:      string(req.Kind),
		Title:     req.Title,
		Guest:     created.Guest,
		MaxScans:  req.MaxScans,
		CreatedAt: s.now(),
	}
	if req.ExpiresAt != nil {
		t := time.Unix(*req.ExpiresAt, 0).UTC()
		result.ExpiresAt = &t
	}

	// The code exists upstream at this point; storage or event failures
	// only degrade history and download, so the submission still succeeds.
	stored := true
	if err := s.repo.Create(ctx, result); err != nil {
		stored = false
		s.logger.WarnContext(ctx, "failed to store result",
			slog.String("code", result.Code),
			slog.String("error", err.Error()))
	}
	if err := s.publisher.PublishCreated(ctx, events.CreatedEvent{
		Code:      result.Code,
		ShortURL:  result.ShortURL,
		Kind:      result.Kind,
		Guest:     result.Guest,
		Viewer:    req.Kind.Viewer(),
		HasExpiry: req.ExpiresAt != nil,
		HasLimit:  req.MaxScans != nil,
		CreatedAt: result.CreatedAt,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish created event",
			slog.String("code", result.Code),
			slog.String("error", err.Error()))
	}

	resp := &model.SubmitResponse{
		Code:     created.Code,
		ShortURL: created.ShortURL,
		Guest:    created.Guest,
		Message:  "QR created (signed in)",
	}
	// the download route reads from storage
	if stored {
		resp.ImageURL = ImagePath(created.Code)
	}
	if created.Guest {
		resp.Message = "QR created (guest mode)"
	}
	if dataURL, err := s.renderer.DataURL(ctx, created.ShortURL, s.qrSize); err == nil {
		resp.QRDataURL = dataURL
	} else {
		s.logger.WarnContext(ctx, "failed to render qr",
			slog.String("code", created.Code),
			slog.String("error", err.Error()))
	}
	return resp, nil
}

// Result returns a stored result so the page can copy its short URL
func (s *FormService) Result(ctx context.Context, code string) (*model.ResultResponse, error) {
	res, err := s.getResult(ctx, code)
	if err != nil {
		return nil, err
	}
	resp := toResponse(res)
	return &resp, nil
}

// History lists the newest results created from one browser session
func (s *FormService) History(ctx context.Context, sessionID string, limit int) ([]model.ResultResponse, error) {
	if sessionID == "" {
		return []model.ResultResponse{}, nil
	}
	if limit <= 0 || limit > s.historyLimit {
		limit = s.historyLimit
	}

	results, err := s.repo.ListBySession(ctx, sessionID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.ResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toResponse(res))
	}
	return out, nil
}

// Remove deletes a result from the history of the session that created it.
// Results of other sessions are reported as not found.
func (s *FormService) Remove(ctx context.Context, sessionID, code string) error {
	res, err := s.getResult(ctx, code)
	if err != nil {
		return err
	}
	if sessionID == "" || res.SessionID != sessionID {
		return ErrResultNotFound
	}
	if err := s.repo.Delete(ctx, code); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResultNotFound
		}
		return err
	}
	return nil
}

// QRCode renders the PNG for a stored result's short URL
func (s *FormService) QRCode(ctx context.Context, code string, size int) ([]byte, error) {
	res, err := s.getResult(ctx, code)
	if err != nil {
		return nil, err
	}
	if size == 0 {
		size = s.qrSize
	}
	png, err := s.renderer.PNG(ctx, res.ShortURL, size)
	if err != nil {
		if errors.Is(err, qr.ErrInvalidSize) {
			return nil, ErrInvalidSize
		}
		return nil, err
	}
	return png, nil
}

// Form describes which kinds and inputs the caller may use. A guest asking
// for anything but a URL is switched back to the URL form with a notice.
func (s *FormService) Form(caller auth.Context, kind string) (*model.FormSchema, error) {
	k, err := payload.ParseKind(kind)
	var notice string
	switch {
	case !caller.Authenticated && (err != nil || k != payload.KindURL):
		k = payload.KindURL
		notice = "Guests can only create URL codes. Sign in for more options."
	case err != nil:
		return nil, err
	}

	schema := &model.FormSchema{
		Authenticated:  caller.Authenticated,
		Kind:           string(k),
		MetadataLocked: payload.MetadataLocked(caller),
		Notice:         notice,
		Hint:           "Signed in: URL, WhatsApp, WiFi, text and vCard are available.",
	}
	if !caller.Authenticated {
		schema.Hint = "Guest: URL only. Sign in for more options."
	}
	for _, allowed := range payload.AllowedKinds(caller) {
		schema.Kinds = append(schema.Kinds, string(allowed))
	}
	for _, f := range payload.FieldsFor(k) {
		schema.Fields = append(schema.Fields, model.FieldSchema{
			Name:        f.Name,
			Label:       f.Label,
			Placeholder: f.Placeholder,
			Multiline:   f.Multiline,
			Options:     f.Options,
		})
	}
	return schema, nil
}

// ImagePath is the download path of a result's QR image
func ImagePath(code string) string {
	return "/api/v1/qr/" + code + "/image.png"
}

func (s *FormService) getResult(ctx context.Context, code string) (*model.Result, error) {
	res, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrResultNotFound
		}
		return nil, err
	}
	return res, nil
}

func mapCreationError(err error) error {
	var rej *creation.RejectedError
	switch {
	case errors.As(err, &rej):
		return &RejectionError{Message: rej.Message, NeedLogin: rej.NeedLogin}
	case errors.Is(err, creation.ErrUnavailable):
		return ErrCreationUnavailable
	case errors.Is(err, payload.ErrPermissionDenied):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrCreationFailed, err)
	}
}

func toResponse(res *model.Result) model.ResultResponse {
	resp := model.ResultResponse{
		Code:      res.Code,
		ShortURL:  res.ShortURL,
		Kind:      res.Kind,
		Guest:     res.Guest,
		MaxScans:  res.MaxScans,
		CreatedAt: res.CreatedAt.Format(time.RFC3339),
		ImageURL:  ImagePath(res.Code),
	}
	if res.Title != nil {
		resp.Title = *res.Title
	}
	if res.ExpiresAt != nil {
		resp.ExpiresAt = res.ExpiresAt.Format(time.RFC3339)
	}
	return resp
}

// kindLabel keeps metric cardinality bounded for arbitrary input
func kindLabel(raw string) string {
	k, err := payload.ParseKind(raw)
	if err != nil {
		return "unknown"
	}
	return string(k)
}

func buildOutcome(err error) string {
	switch {
	case errors.Is(err, payload.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, payload.ErrMissingField):
		return "missing_field"
	case errors.Is(err, payload.ErrUnsupportedKind):
		return "unsupported_kind"
	}
	return "error"
}

// Ensure FormService implements FormServiceInterface at compile time
var _ FormServiceInterface = (*FormService)(nil)
