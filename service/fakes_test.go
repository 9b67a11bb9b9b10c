package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BerniceZTT/crm_stats/models"
)

var errBoom = errors.New("boom")

// memStore 测试用缓存存储
type memStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	getErr error
	setErr error
	gets   int32
	sets   int32
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}}
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	atomic.AddInt32(&s.gets, 1)
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	atomic.AddInt32(&s.sets, 1)
	if s.setErr != nil {
		return s.setErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// fakeSource 按数据源类型返回固定的行
type fakeSource struct {
	mu       sync.Mutex
	daily    map[models.RecordKind][]models.GroupRow
	flat     map[string][]models.GroupRow // 按第一个分组字段
	failing  map[models.RecordKind]bool
	// blocking 中的数据源一直等到 ctx 结束，测试开始前设置
	blocking map[models.RecordKind]bool
	backlog  models.ShopBacklog
	calls    int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		daily:    map[models.RecordKind][]models.GroupRow{},
		flat:     map[string][]models.GroupRow{},
		failing:  map[models.RecordKind]bool{},
		blocking: map[models.RecordKind]bool{},
	}
}

func (f *fakeSource) Aggregate(ctx context.Context, q models.GroupQuery) ([]models.GroupRow, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.blocking[q.Kind] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[q.Kind] {
		return nil, errBoom
	}
	if !q.ByDay && len(q.GroupBy) > 0 {
		return f.flat[q.GroupBy[0]], nil
	}
	var out []models.GroupRow
	for _, row := range f.daily[q.Kind] {
		day, err := time.ParseInLocation(models.DateLayout, row.Day, q.Location)
		if err != nil || day.Before(startOfDay(q.Start)) || !day.Before(q.End) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (f *fakeSource) ShopBacklog(ctx context.Context, q models.BacklogQuery) (models.ShopBacklog, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.blocking[models.KindShopBacklog] {
		<-ctx.Done()
		return models.ShopBacklog{}, ctx.Err()
	}
	if f.failing[models.KindShopBacklog] {
		return models.ShopBacklog{}, errBoom
	}
	return f.backlog, nil
}

// fakeDismissals 内存中的忽略记录
type fakeDismissals struct {
	mu      sync.Mutex
	items   map[string]models.Dismissal
	listErr error
}

func newFakeDismissals() *fakeDismissals {
	return &fakeDismissals{items: map[string]models.Dismissal{}}
}

func (f *fakeDismissals) ListActive(_ context.Context, userID string, now time.Time) ([]models.Dismissal, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Dismissal
	for _, d := range f.items {
		if d.UserID == userID && d.ActiveAt(now) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDismissals) Upsert(_ context.Context, d models.Dismissal) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := d.UserID + "|" + d.Key
	if old, ok := f.items[key]; ok {
		d.CreatedAt = old.CreatedAt
	}
	f.items[key] = d
	return nil
}

// fakeConfigStore 固定的配置覆盖值
type fakeConfigStore struct {
	raw     map[string]interface{}
	version string
	err     error
	calls   int32
}

func (f *fakeConfigStore) LoadAnalyticsConfig(context.Context) (map[string]interface{}, string, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.raw, f.version, f.err
}

var testZone = time.FixedZone("CST", 8*3600)

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, testZone)
}
