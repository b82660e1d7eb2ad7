package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/acquiring/internal/audit/domain"
	"github.com/smallbiznis/acquiring/internal/audit/masking"
	"github.com/smallbiznis/acquiring/internal/clock"
	"github.com/smallbiznis/acquiring/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxErrorMessageLen = 1024

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  auditdomain.Repository
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  auditdomain.Repository
	clock clock.Clock
}

func NewService(p Params) auditdomain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		repo:  p.Repo,
		clock: clk,
	}
}

func (s *Service) WithTx(tx *gorm.DB) auditdomain.Service {
	next := *s
	next.db = tx
	return &next
}

func (s *Service) Begin(ctx context.Context, paymentID snowflake.ID, actorID *string, opType auditdomain.OperationType, request map[string]any) (*auditdomain.OperationEntry, error) {
	if paymentID == 0 {
		return nil, auditdomain.ErrInvalidPayment
	}
	if !opType.Valid() {
		return nil, auditdomain.ErrInvalidOperationType
	}

	if request == nil {
		request = map[string]any{}
	}
	payload, err := json.Marshal(masking.MaskParams(request))
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", opType, err)
	}

	now := s.clock.Now()
	entry := &auditdomain.OperationEntry{
		ID:        s.genID.Generate(),
		PaymentID: paymentID,
		ActorID:   normalizePointer(actorID),
		Type:      opType,
		Request:   datatypes.JSON(payload),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Insert(ctx, s.db, entry); err != nil {
		s.log.Warn("failed to write operation entry",
			zap.String("operation", string(opType)),
			zap.String("payment_id", paymentID.String()),
			zap.Error(err),
		)
		return nil, err
	}
	return entry, nil
}

func (s *Service) Complete(ctx context.Context, id snowflake.ID, raw []byte) error {
	written, err := s.repo.SetResponse(ctx, s.db, id, responsePayload(raw), s.clock.Now())
	if err != nil {
		s.log.Warn("failed to record operation response", zap.String("operation_id", id.String()), zap.Error(err))
		return err
	}
	if !written {
		return s.missingOrRecorded(ctx, id)
	}
	return nil
}

func (s *Service) Fail(ctx context.Context, id snowflake.ID, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown transport error"
	}
	reason = truncate(reason, maxErrorMessageLen)

	written, err := s.repo.SetError(ctx, s.db, id, reason, s.clock.Now())
	if err != nil {
		s.log.Warn("failed to record operation error", zap.String("operation_id", id.String()), zap.Error(err))
		return err
	}
	if !written {
		return s.missingOrRecorded(ctx, id)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*auditdomain.OperationEntry, error) {
	entry, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, auditdomain.ErrEntryNotFound
	}
	return entry, nil
}

func (s *Service) ListByPayment(ctx context.Context, req auditdomain.ListOperationsRequest) (auditdomain.ListOperationsResponse, error) {
	if req.PaymentID == 0 {
		return auditdomain.ListOperationsResponse{}, auditdomain.ErrInvalidPayment
	}

	opType := auditdomain.OperationType(strings.ToUpper(strings.TrimSpace(req.Type)))
	if opType != "" && !opType.Valid() {
		return auditdomain.ListOperationsResponse{}, auditdomain.ErrInvalidOperationType
	}

	var cursor *auditdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListOperationsResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339Nano, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListOperationsResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListOperationsResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.Size()
	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		PaymentID: req.PaymentID,
		Type:      opType,
		Cursor:    cursor,
		Limit:     pageSize,
	})
	if err != nil {
		return auditdomain.ListOperationsResponse{}, err
	}

	items, pageInfo, err := pagination.Page(items, pageSize, func(item *auditdomain.OperationEntry) pagination.Cursor {
		return pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
	})
	if err != nil {
		return auditdomain.ListOperationsResponse{}, err
	}

	operations := make([]auditdomain.OperationEntry, 0, len(items))
	for _, item := range items {
		operations = append(operations, *item)
	}
	return auditdomain.ListOperationsResponse{PageInfo: pageInfo, Operations: operations}, nil
}

func (s *Service) missingOrRecorded(ctx context.Context, id snowflake.ID) error {
	entry, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return err
	}
	if entry == nil {
		return auditdomain.ErrEntryNotFound
	}
	return auditdomain.ErrAlreadyRecorded
}

// responsePayload keeps JSON replies verbatim and wraps anything else so the
// column always holds valid JSON.
func responsePayload(raw []byte) []byte {
	if len(raw) > 0 && json.Valid(raw) {
		return raw
	}
	wrapped, _ := json.Marshal(map[string]string{"raw": string(raw)})
	return wrapped
}

func normalizePointer(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
