package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"campussync/internal/bootstrap/logging"
	"campussync/internal/domain/feed"
	"campussync/internal/errs"
	"campussync/internal/infrastructure/persistence/sqlite/model"
	"campussync/internal/ports"
)

// DocumentStore implements ports.DocumentStore on gorm/sqlite. Non-set
// fields live as JSON in the document body; []string field values are stored
// as individual set-member rows so membership changes are atomic single-row
// writes. Every committed mutation re-reads the collection and fans the
// fresh ordered document array out to live subscribers.
type DocumentStore struct {
	db *gorm.DB

	mu     chan struct{} // acts as a mutex usable with ctx if ever needed
	subs   map[string][]*subscription
	closed bool

	// fanoutCtx outlives any single mutation; the post-commit re-read must
	// not die with the writer's request context.
	fanoutCtx    context.Context
	cancelFanout context.CancelFunc
}

var _ ports.DocumentStore = (*DocumentStore)(nil)

func New(db *gorm.DB) *DocumentStore {
	fanoutCtx, cancelFanout := context.WithCancel(context.Background())
	s := &DocumentStore{
		db:           db,
		mu:           make(chan struct{}, 1),
		subs:         make(map[string][]*subscription),
		fanoutCtx:    fanoutCtx,
		cancelFanout: cancelFanout,
	}
	return s
}

func (s *DocumentStore) lock()   { s.mu <- struct{}{} }
func (s *DocumentStore) unlock() { <-s.mu }

func unavailable(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %s", msg, feed.ErrStoreUnavailable, err.Error())
}

// splitFields separates set-valued fields ([]string values) from scalar
// fields kept in the JSON body.
func splitFields(fields ports.Fields) (scalars map[string]any, sets map[string][]string) {
	scalars = make(map[string]any, len(fields))
	sets = make(map[string][]string)
	for key, value := range fields {
		if members, ok := value.([]string); ok {
			sets[key] = feed.NormalizeFollowers(members)
			continue
		}
		scalars[key] = value
	}
	return scalars, sets
}

func timestampField(fields map[string]any, key string, fallback string) string {
	if raw, ok := fields[key]; ok {
		if text, ok := raw.(string); ok && text != "" {
			return text
		}
	}
	return fallback
}

func (s *DocumentStore) Create(ctx context.Context, collection string, fields ports.Fields) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return "", errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(collection) == "" {
		return "", errors.New("collection is required")
	}

	scalars, sets := splitFields(fields)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	createdAt := timestampField(scalars, "createdAt", now)
	updatedAt := timestampField(scalars, "updatedAt", createdAt)

	body, err := json.Marshal(scalars)
	if err != nil {
		return "", errs.Wrap(err, "encode document body")
	}

	id := uuid.NewString()
	row := model.Document{
		Collection: collection,
		DocID:      id,
		Body:       string(body),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		for field, members := range sets {
			for _, value := range members {
				member := model.SetMember{Collection: collection, DocID: id, Field: field, Value: value}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", unavailable(err, "create document")
	}

	s.notify(collection)
	return id, nil
}

func (s *DocumentStore) Update(ctx context.Context, collection string, id string, fields ports.Fields) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if len(fields) == 0 {
		return errors.New("no fields to update")
	}

	scalars, sets := splitFields(fields)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.Document
		if err := tx.Where("collection = ? AND doc_id = ?", collection, id).Take(&row).Error; err != nil {
			return err
		}

		body := make(map[string]any)
		if err := json.Unmarshal([]byte(row.Body), &body); err != nil {
			return err
		}
		for key, value := range scalars {
			body[key] = value
		}

		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}

		row.Body = string(encoded)
		row.UpdatedAt = timestampField(scalars, "updatedAt", row.UpdatedAt)
		if err := tx.Where("collection = ? AND doc_id = ?", collection, id).
			Select("body", "updated_at").Updates(&row).Error; err != nil {
			return err
		}

		// A []string value replaces the whole set for that field.
		for field, members := range sets {
			if err := tx.Where("collection = ? AND doc_id = ? AND field = ?", collection, id, field).
				Delete(&model.SetMember{}).Error; err != nil {
				return err
			}
			for _, value := range members {
				member := model.SetMember{Collection: collection, DocID: id, Field: field, Value: value}
				if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&member).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errs.Wrapf(ports.ErrNotFound, "update %s/%s", collection, id)
		}
		return unavailable(err, "update document")
	}

	s.notify(collection)
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, collection string, id string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("collection = ? AND doc_id = ?", collection, id).Delete(&model.Document{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Where("collection = ? AND doc_id = ?", collection, id).Delete(&model.SetMember{}).Error
	})
	if err != nil {
		return unavailable(err, "delete document")
	}
	if deleted == 0 {
		return errs.Wrapf(ports.ErrNotFound, "delete %s/%s", collection, id)
	}

	s.notify(collection)
	return nil
}

func (s *DocumentStore) GetOne(ctx context.Context, collection string, id string) (ports.Document, bool, error) {
	if ctx == nil {
		return ports.Document{}, false, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return ports.Document{}, false, errs.Wrap(err, "check context")
	}

	var row model.Document
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Document{}, false, nil
		}
		return ports.Document{}, false, unavailable(err, "get document")
	}

	var members []model.SetMember
	if err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		Order("field asc, value asc").
		Find(&members).Error; err != nil {
		return ports.Document{}, false, unavailable(err, "get document set members")
	}

	doc, err := decodeDocument(row, members)
	if err != nil {
		return ports.Document{}, false, err
	}
	return doc, true, nil
}

func (s *DocumentStore) ListOrdered(ctx context.Context, collection string, orderBy string, dir ports.SortDirection) ([]ports.Document, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	column, err := orderColumn(orderBy)
	if err != nil {
		return nil, err
	}
	direction := "asc"
	if dir == ports.SortDesc {
		direction = "desc"
	}

	var rows []model.Document
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Order(fmt.Sprintf("%s %s, doc_id %s", column, direction, direction)).
		Find(&rows).Error; err != nil {
		return nil, unavailable(err, "list documents")
	}

	var members []model.SetMember
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection).
		Find(&members).Error; err != nil {
		return nil, unavailable(err, "list document set members")
	}

	byDoc := make(map[string][]model.SetMember, len(rows))
	for _, member := range members {
		byDoc[member.DocID] = append(byDoc[member.DocID], member)
	}

	docs := make([]ports.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := decodeDocument(row, byDoc[row.DocID])
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (s *DocumentStore) AddToSet(ctx context.Context, collection string, id string, field string, value string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	if err := s.requireDocument(ctx, collection, id); err != nil {
		return err
	}

	member := model.SetMember{Collection: collection, DocID: id, Field: field, Value: value}
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&member).Error; err != nil {
		return unavailable(err, "add set member")
	}

	s.notify(collection)
	return nil
}

func (s *DocumentStore) RemoveFromSet(ctx context.Context, collection string, id string, field string, value string) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}

	if err := s.requireDocument(ctx, collection, id); err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).
		Where("collection = ? AND doc_id = ? AND field = ? AND value = ?", collection, id, field, value).
		Delete(&model.SetMember{}).Error; err != nil {
		return unavailable(err, "remove set member")
	}

	s.notify(collection)
	return nil
}

func (s *DocumentStore) requireDocument(ctx context.Context, collection string, id string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Document{}).
		Where("collection = ? AND doc_id = ?", collection, id).
		Count(&count).Error; err != nil {
		return unavailable(err, "check document")
	}
	if count == 0 {
		return errs.Wrapf(ports.ErrNotFound, "%s/%s", collection, id)
	}
	return nil
}

// Close cancels every live subscription.
func (s *DocumentStore) Close() {
	s.lock()
	defer s.unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.cancelFanout()
	for _, subs := range s.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
	}
	s.subs = make(map[string][]*subscription)
}

func orderColumn(orderBy string) (string, error) {
	switch orderBy {
	case "createdAt":
		return "created_at", nil
	case "updatedAt":
		return "updated_at", nil
	default:
		return "", fmt.Errorf("unsupported order field %q", orderBy)
	}
}

func decodeDocument(row model.Document, members []model.SetMember) (ports.Document, error) {
	fields := make(ports.Fields)
	if row.Body != "" {
		if err := json.Unmarshal([]byte(row.Body), &fields); err != nil {
			return ports.Document{}, errs.Wrapf(err, "decode document %s/%s", row.Collection, row.DocID)
		}
	}

	byField := make(map[string][]string)
	for _, member := range members {
		byField[member.Field] = append(byField[member.Field], member.Value)
	}
	for field, values := range byField {
		sort.Strings(values)
		fields[field] = values
	}

	return ports.Document{ID: row.DocID, Fields: fields}, nil
}

type subscription struct {
	store      *DocumentStore
	collection string
	orderBy    string
	dir        ports.SortDirection
	ch         chan []ports.Document
	done       bool
}

func (sub *subscription) C() <-chan []ports.Document { return sub.ch }

func (sub *subscription) Cancel() {
	sub.store.lock()
	defer sub.store.unlock()
	if sub.done || sub.store.closed {
		sub.done = true
		return
	}
	sub.done = true

	remaining := sub.store.subs[sub.collection][:0]
	for _, other := range sub.store.subs[sub.collection] {
		if other != sub {
			remaining = append(remaining, other)
		}
	}
	sub.store.subs[sub.collection] = remaining
	close(sub.ch)
}

// deliver replaces any undelivered snapshot with the latest one; slow
// consumers only ever skip intermediate states, never reorder them.
func (sub *subscription) deliver(docs []ports.Document) {
	for {
		select {
		case sub.ch <- docs:
			return
		default:
			select {
			case <-sub.ch:
			default:
			}
		}
	}
}

func (s *DocumentStore) SubscribeOrdered(ctx context.Context, collection string, orderBy string, dir ports.SortDirection) (ports.Subscription, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	initial, err := s.ListOrdered(ctx, collection, orderBy, dir)
	if err != nil {
		return nil, err
	}

	sub := &subscription{
		store:      s,
		collection: collection,
		orderBy:    orderBy,
		dir:        dir,
		ch:         make(chan []ports.Document, 1),
	}

	s.lock()
	if s.closed {
		s.unlock()
		return nil, unavailable(errors.New("store closed"), "subscribe")
	}
	s.subs[collection] = append(s.subs[collection], sub)
	sub.deliver(initial)
	s.unlock()

	return sub, nil
}

// notify re-reads the collection and fans it out. Runs after the mutation's
// transaction committed; delivery order follows write order because the
// whole re-read + fanout happens under the store lock. The re-read runs on
// the store's own context: a writer whose request context died right after
// commit must still get its write announced.
func (s *DocumentStore) notify(collection string) {
	s.lock()
	defer s.unlock()
	if s.closed || len(s.subs[collection]) == 0 {
		return
	}
	ctx := s.fanoutCtx

	type listing struct {
		orderBy string
		dir     ports.SortDirection
	}
	listed := make(map[listing][]ports.Document)

	for _, sub := range s.subs[collection] {
		key := listing{orderBy: sub.orderBy, dir: sub.dir}
		docs, ok := listed[key]
		if !ok {
			var err error
			docs, err = s.ListOrdered(ctx, collection, sub.orderBy, sub.dir)
			if err != nil {
				logging.Warn(ctx, "subscription refresh failed, keeping subscribers on previous view",
					slog.String("collection", collection),
					slog.Any("err", errs.Loggable(err)))
				continue
			}
			listed[key] = docs
		}
		sub.deliver(docs)
	}
}
