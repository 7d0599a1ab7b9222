package pipeline

import (
	"testing"
	"time"
)

func TestContentHashHex(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{"hello world", "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"},
	}
	for _, tt := range tests {
		if got := ContentHashHex([]byte(tt.in)); got != tt.want {
			t.Errorf("ContentHashHex(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
	if ContentHashHex([]byte("19.1 Caps")) == ContentHashHex([]byte("19.2 Caps")) {
		t.Error("different contracts hash the same")
	}
}

func TestJob_SetStatus(t *testing.T) {
	job := NewJob("u1", "doc1", "msa.pdf", "", []byte("%PDF"), nil)
	steps := []struct {
		status JobStatus
		phase  string
	}{
		{StatusParsing, "parsing"},
		{StatusChunking, "chunking"},
		{StatusIndexing, "indexing"},
	}
	for _, st := range steps {
		prev := job.Snapshot().UpdatedAt
		time.Sleep(time.Millisecond)
		job.SetStatus(st.status, st.phase)

		snap := job.Snapshot()
		if snap.Status != st.status || snap.Phase != st.phase {
			t.Fatalf("after %s: status/phase = %s/%s", st.status, snap.Status, snap.Phase)
		}
		if !snap.UpdatedAt.After(prev) {
			t.Errorf("UpdatedAt did not move after %s", st.status)
		}
		if job.FileData() == nil {
			t.Fatalf("upload released while %s", st.status)
		}
	}

	job.SetStatus(StatusCompleted, "done")
	if job.FileData() != nil {
		t.Error("upload kept after the job finished")
	}
}

func TestJobStatus_Done(t *testing.T) {
	tests := map[JobStatus]bool{
		StatusQueued:     false,
		StatusParsing:    false,
		StatusChunking:   false,
		StatusIndexing:   false,
		StatusCompleted:  true,
		StatusFailed:     true,
		StatusPartial:    true,
		StatusDupSkipped: true,
	}
	for status, want := range tests {
		if got := status.Done(); got != want {
			t.Errorf("%s.Done() = %v, want %v", status, got, want)
		}
	}
}

func TestJob_AddError(t *testing.T) {
	job := &Job{ID: "err-test", UpdatedAt: time.Now()}
	job.AddError("index attempt 1 failed")
	job.AddError("references: status 500")

	snap := job.Snapshot()
	if len(snap.Progress.Errors) != 2 {
		t.Fatalf("expected 2 errors, got %d", len(snap.Progress.Errors))
	}
	if snap.Progress.Errors[0] != "index attempt 1 failed" {
		t.Errorf("expected first error %q, got %q", "index attempt 1 failed", snap.Progress.Errors[0])
	}

	// The snapshot must not alias the job's slice.
	snap.Progress.Errors[0] = "changed"
	if job.Snapshot().Progress.Errors[0] != "index attempt 1 failed" {
		t.Error("snapshot errors alias job state")
	}
}

func TestJob_Progress(t *testing.T) {
	job := &Job{ID: "progress-test", UpdatedAt: time.Now()}
	job.SetTotalPages(3)
	job.IncrPagesProcessed()
	job.IncrPagesProcessed()
	job.SetChunksEmitted(12)
	job.SetChunksIndexed(12)
	job.SetReferences(4)

	want := Progress{TotalPages: 3, PagesProcessed: 2, ChunksEmitted: 12, ChunksIndexed: 12, References: 4, Errors: []string{}}
	got := job.Snapshot().Progress
	if got.TotalPages != want.TotalPages || got.PagesProcessed != want.PagesProcessed ||
		got.ChunksEmitted != want.ChunksEmitted || got.ChunksIndexed != want.ChunksIndexed ||
		got.References != want.References {
		t.Errorf("progress = %+v, want %+v", got, want)
	}
}

func TestNewJob(t *testing.T) {
	md := map[string]any{"contract_id": "MSA-1"}
	job := NewJob("u1", "", "msa.pdf", "MSA", []byte("data"), md)
	if job.ID == "" || job.DocID == "" || job.ID == job.DocID {
		t.Errorf("ids = %q / %q", job.ID, job.DocID)
	}
	if job.Status != StatusQueued {
		t.Errorf("status = %q", job.Status)
	}
	md["contract_id"] = "changed"
	if job.Metadata()["contract_id"] != "MSA-1" {
		t.Error("job metadata aliases the caller map")
	}
	if NewJob("u1", "fixed", "a.txt", "", nil, nil).DocID != "fixed" {
		t.Error("explicit doc id not kept")
	}
}

func TestJob_MarkDuplicate(t *testing.T) {
	job := NewJob("u1", "d2", "a.txt", "", []byte("x"), nil)
	job.MarkDuplicate("d1")
	snap := job.Snapshot()
	if snap.Status != StatusDupSkipped || snap.DuplicateOf != "d1" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestJob_FileData(t *testing.T) {
	job := NewJob("u1", "", "nda.docx", "", nil, nil)
	job.SetFileData([]byte("PK"))
	if got := string(job.FileData()); got != "PK" {
		t.Errorf("FileData = %q", got)
	}
}

func TestJob_SnapshotEmptyErrors(t *testing.T) {
	snap := NewJob("u1", "", "a.txt", "", nil, nil).Snapshot()
	if snap.Progress.Errors == nil || len(snap.Progress.Errors) != 0 {
		t.Errorf("errors = %#v, want empty non-nil slice", snap.Progress.Errors)
	}
}

func TestJobStore(t *testing.T) {
	store := NewJobStore(50 * time.Millisecond)
	if store.Get("missing") != nil {
		t.Error("Get on empty store returned a job")
	}
	store.Cleanup()

	stale := NewJob("u1", "", "old.txt", "", nil, nil)
	store.Put(stale)
	time.Sleep(80 * time.Millisecond)
	live := NewJob("u1", "", "new.txt", "", nil, nil)
	store.Put(live)

	if got := store.Get(live.ID); got != live {
		t.Fatalf("Get(%s) = %v", live.ID, got)
	}
	store.Cleanup()
	if store.Get(stale.ID) != nil {
		t.Error("idle job survived cleanup")
	}
	if store.Get(live.ID) == nil {
		t.Error("recent job removed by cleanup")
	}
}

func TestJobStore_Counts(t *testing.T) {
	store := NewJobStore(time.Hour)
	for i, st := range []JobStatus{StatusQueued, StatusCompleted, StatusCompleted} {
		store.Put(&Job{ID: string(rune('a' + i)), Status: st, UpdatedAt: time.Now()})
	}
	counts := store.Counts()
	if counts[StatusCompleted] != 2 || counts[StatusQueued] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
