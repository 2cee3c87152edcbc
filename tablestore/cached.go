package tablestore

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

type cachedTable struct {
	Headers []string `json:"headers"`
	Rows    []Row    `json:"rows"`
}

// CachedStore is a read-through Redis cache in front of another store.
// Any write to a table drops its cached copy. Cache failures fall back to
// the underlying store.
type CachedStore struct {
	Store
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedStore(inner Store, rdb *redis.Client, prefix string, ttl time.Duration, logger *logrus.Logger) *CachedStore {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedStore{Store: inner, rdb: rdb, prefix: prefix, ttl: ttl, logger: logger}
}

func (c *CachedStore) key(name string) string {
	return "tablestore:" + c.prefix + ":" + name
}

func (c *CachedStore) ReadTable(ctx context.Context, name string) (*Table, error) {
	if c.rdb == nil {
		return c.Store.ReadTable(ctx, name)
	}
	val, err := c.rdb.Get(ctx, c.key(name)).Bytes()
	if err == nil {
		var ct cachedTable
		if jsonErr := json.Unmarshal(val, &ct); jsonErr == nil {
			return &Table{Name: name, Headers: ct.Headers, Rows: ct.Rows}, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WithError(err).WithField("table", name).Warn("table cache read failed")
	}

	t, err := c.Store.ReadTable(ctx, name)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = Row(sheetValues(r))
	}
	if b, err := json.Marshal(cachedTable{Headers: t.Headers, Rows: rows}); err == nil {
		if err := c.rdb.Set(ctx, c.key(name), b, c.ttl).Err(); err != nil {
			c.logger.WithError(err).WithField("table", name).Warn("table cache write failed")
		}
	}
	return t, nil
}

func (c *CachedStore) invalidate(ctx context.Context, name string) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Del(ctx, c.key(name)).Err(); err != nil {
		c.logger.WithError(err).WithField("table", name).Warn("table cache invalidate failed")
	}
}

func (c *CachedStore) WriteTable(ctx context.Context, name string, headers []string, batches iter.Seq[[]Row]) error {
	defer c.invalidate(ctx, name)
	return c.Store.WriteTable(ctx, name, headers, batches)
}

func (c *CachedStore) DeleteTable(ctx context.Context, name string) error {
	defer c.invalidate(ctx, name)
	return c.Store.DeleteTable(ctx, name)
}

func (c *CachedStore) editor(name string) (RowEditor, error) {
	ed, ok := c.Store.(RowEditor)
	if !ok {
		return nil, errors.New("underlying store cannot edit rows")
	}
	return ed, nil
}

func (c *CachedStore) DeleteRows(ctx context.Context, name string, rowIdx ...int) error {
	ed, err := c.editor(name)
	if err != nil {
		return err
	}
	defer c.invalidate(ctx, name)
	return ed.DeleteRows(ctx, name, rowIdx...)
}

func (c *CachedStore) UpdateRow(ctx context.Context, name string, rowIdx int, row Row) error {
	ed, err := c.editor(name)
	if err != nil {
		return err
	}
	defer c.invalidate(ctx, name)
	return ed.UpdateRow(ctx, name, rowIdx, row)
}

func (c *CachedStore) AppendRows(ctx context.Context, name string, rows []Row) error {
	ed, err := c.editor(name)
	if err != nil {
		return err
	}
	defer c.invalidate(ctx, name)
	return ed.AppendRows(ctx, name, rows)
}
