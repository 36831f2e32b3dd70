package service

import (
	"context"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/file-manager/internal/domain/model"
	"github.com/bigkaa/goartstore/file-manager/internal/sim"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/filerecord"
	"github.com/bigkaa/goartstore/file-manager/internal/storage/uploadqueue"
)

func TestStatsRunOnce(t *testing.T) {
	clock := sim.NewManualClock(testStart)
	queue := uploadqueue.New(clock, 0, testLogger())
	files := filerecord.New(clock, 0, testLogger())
	ctx := context.Background()

	files.Create(ctx, model.FileRecordInput{Name: "a"})
	queue.Create(ctx, model.UploadQueueInput{FileName: "p"})
	e, _ := queue.Create(ctx, model.UploadQueueInput{FileName: "x"})
	errStatus := model.UploadError
	queue.Update(ctx, e.FileID, model.UploadPatch{Status: &errStatus})

	stats := NewStatsService(queue, files, time.Hour, testLogger())
	snap := stats.RunOnce()

	if snap.Files != 1 {
		t.Errorf("Files: хотели 1, получили %d", snap.Files)
	}
	if snap.Queue[model.UploadPending] != 1 {
		t.Errorf("pending: хотели 1, получили %d", snap.Queue[model.UploadPending])
	}
	if snap.Queue[model.UploadError] != 1 {
		t.Errorf("error: хотели 1, получили %d", snap.Queue[model.UploadError])
	}
	if snap.Queue[model.UploadUploading] != 0 {
		t.Errorf("uploading: хотели 0, получили %d", snap.Queue[model.UploadUploading])
	}
}

func TestStatsStartStop(t *testing.T) {
	clock := sim.NewManualClock(testStart)
	stats := NewStatsService(
		uploadqueue.New(clock, 0, testLogger()),
		filerecord.New(clock, 0, testLogger()),
		time.Millisecond, testLogger(),
	)

	stats.Start(context.Background())
	time.Sleep(5 * time.Millisecond)
	stats.Stop()
	stats.Stop() // повторная остановка безопасна
}
