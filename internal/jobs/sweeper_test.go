package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"farmlens/api/internal/config"
	"farmlens/api/internal/storage"
)

type fakeObjectLister struct {
	objects []storage.ObjectInfo
	listErr error
	removed []string
}

func (f *fakeObjectLister) ListObjects(ctx context.Context) ([]storage.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.objects, nil
}

func (f *fakeObjectLister) Remove(ctx context.Context, key string) error {
	f.removed = append(f.removed, key)
	return nil
}

type fakeScanIndex struct {
	referenced map[string]bool
	err        error
}

func (f fakeScanIndex) ExistsByImageKey(ctx context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.referenced[key], nil
}

func TestSweepRemovesOnlyAgedOrphans(t *testing.T) {
	now := time.Date(2025, 6, 2, 3, 0, 0, 0, time.UTC)

	store := &fakeObjectLister{objects: []storage.ObjectInfo{
		{Key: "owner-1/old-orphan.jpg", LastModified: now.Add(-48 * time.Hour)},
		{Key: "owner-1/fresh-orphan.jpg", LastModified: now.Add(-1 * time.Hour)},
		{Key: "owner-1/referenced.jpg", LastModified: now.Add(-48 * time.Hour)},
	}}
	index := fakeScanIndex{referenced: map[string]bool{
		"owner-1/referenced.jpg": true,
	}}

	sweeper := NewSweeper(index, store, config.SweeperConfig{GracePeriod: 24 * time.Hour}, zerolog.Nop())
	sweeper.sweep(context.Background(), now)

	assert.Equal(t, []string{"owner-1/old-orphan.jpg"}, store.removed)
}

func TestSweepSkipsOnReferenceCheckError(t *testing.T) {
	now := time.Now()

	store := &fakeObjectLister{objects: []storage.ObjectInfo{
		{Key: "owner-1/maybe.jpg", LastModified: now.Add(-48 * time.Hour)},
	}}
	index := fakeScanIndex{err: errors.New("db offline")}

	sweeper := NewSweeper(index, store, config.SweeperConfig{GracePeriod: 24 * time.Hour}, zerolog.Nop())
	sweeper.sweep(context.Background(), now)

	assert.Empty(t, store.removed, "an unverifiable object must never be removed")
}

func TestSweepToleratesListFailure(t *testing.T) {
	store := &fakeObjectLister{listErr: errors.New("storage offline")}

	sweeper := NewSweeper(fakeScanIndex{}, store, config.SweeperConfig{GracePeriod: 24 * time.Hour}, zerolog.Nop())
	sweeper.sweep(context.Background(), time.Now())

	assert.Empty(t, store.removed)
}

func TestStartRespectsDisabledFlag(t *testing.T) {
	sweeper := NewSweeper(fakeScanIndex{}, &fakeObjectLister{}, config.SweeperConfig{Enabled: false}, zerolog.Nop())
	assert.NoError(t, sweeper.Start())
}
