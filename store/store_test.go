package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"), 4)
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileInsertAndLookup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertFile(ctx, File{
		Filename:  "pnl.json",
		Mime:      "application/json",
		SizeBytes: 1234,
		SHA256:    "abc123",
		Status:    "processing",
	})
	if err != nil {
		t.Fatalf("InsertFile: %v", err)
	}

	byHash, err := s.GetFileBySHA256(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetFileBySHA256: %v", err)
	}
	if byHash.ID != id || byHash.Filename != "pnl.json" {
		t.Errorf("got %+v", byHash)
	}

	if _, err := s.GetFileBySHA256(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown hash: got %v, want ErrNotFound", err)
	}

	if err := s.UpdateFileStatus(ctx, id, "completed"); err != nil {
		t.Fatalf("UpdateFileStatus: %v", err)
	}
	f, err := s.GetFile(ctx, id)
	if err != nil {
		t.Fatalf("GetFile: %v", err)
	}
	if f.Status != "completed" {
		t.Errorf("status = %q, want completed", f.Status)
	}

	files, err := s.ListFiles(ctx)
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	if len(files) != 1 {
		t.Errorf("got %d files, want 1", len(files))
	}
}

func TestChunksAndEmbeddings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fileID, err := s.InsertFile(ctx, File{Filename: "a.json", SHA256: "h1", Status: "processing"})
	if err != nil {
		t.Fatal(err)
	}

	ids, err := s.InsertChunks(ctx, fileID, []string{"first chunk", "second chunk"})
	if err != nil {
		t.Fatalf("InsertChunks: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d chunk ids, want 2", len(ids))
	}

	if err := s.InsertEmbedding(ctx, ids[0], []float32{0.1, 0.2, 0.3, 0.4}); err != nil {
		t.Fatalf("InsertEmbedding: %v", err)
	}

	// Dimension mismatch must be rejected before hitting the vec table.
	if err := s.InsertEmbedding(ctx, ids[1], []float32{0.1, 0.2}); err == nil {
		t.Error("expected error for wrong embedding dimension")
	}
}

func TestDeleteFileCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fileID, err := s.InsertFile(ctx, File{Filename: "a.json", SHA256: "h1", Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}
	ids, err := s.InsertChunks(ctx, fileID, []string{"chunk"})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.InsertEmbedding(ctx, ids[0], []float32{1, 2, 3, 4}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.InsertProposal(ctx, fileID, "entity", json.RawMessage(`{"name":"Report"}`), ""); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteFile(ctx, fileID); err != nil {
		t.Fatalf("DeleteFile: %v", err)
	}

	var chunks, proposals int
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM chunks`).Scan(&chunks); err != nil {
		t.Fatal(err)
	}
	if err := s.DB().QueryRow(`SELECT COUNT(*) FROM proposals`).Scan(&proposals); err != nil {
		t.Fatal(err)
	}
	if chunks != 0 || proposals != 0 {
		t.Errorf("cascade left %d chunks, %d proposals", chunks, proposals)
	}

	if err := s.DeleteFile(ctx, fileID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second delete: got %v, want ErrNotFound", err)
	}
}

func TestProposalLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fileID, err := s.InsertFile(ctx, File{Filename: "a.json", SHA256: "h1", Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}

	payload := json.RawMessage(`{"name":"Report","properties":{"currency":"ISO code"},"source_file_id":"1"}`)
	id, err := s.InsertProposal(ctx, fileID, "entity", payload, "")
	if err != nil {
		t.Fatalf("InsertProposal: %v", err)
	}

	p, err := s.GetProposal(ctx, id)
	if err != nil {
		t.Fatalf("GetProposal: %v", err)
	}
	if p.Status != StatusPending {
		t.Errorf("status = %q, want pending", p.Status)
	}
	if p.CreatedBy != "system" {
		t.Errorf("created_by = %q, want default system", p.CreatedBy)
	}

	pending, err := s.ListProposals(ctx, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Errorf("got %d pending, want 1", len(pending))
	}

	if err := s.UpdateProposalStatus(ctx, id, StatusApproved, "reviewer"); err != nil {
		t.Fatalf("UpdateProposalStatus: %v", err)
	}

	pending, err = s.ListProposals(ctx, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("got %d pending after approval, want 0", len(pending))
	}

	all, err := s.ListProposals(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].Status != StatusApproved || all[0].ReviewedBy != "reviewer" {
		t.Errorf("all = %+v", all)
	}

	if err := s.UpdateProposalStatus(ctx, 999, StatusApproved, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown proposal: got %v, want ErrNotFound", err)
	}
}

func TestMergeProposalEntityThenRelation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fileID, err := s.InsertFile(ctx, File{Filename: "a.json", SHA256: "h1", Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}

	insert := func(typ, payload string) Proposal {
		t.Helper()
		id, err := s.InsertProposal(ctx, fileID, typ, json.RawMessage(payload), "")
		if err != nil {
			t.Fatal(err)
		}
		p, err := s.GetProposal(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		return p
	}

	report := insert("entity", `{"name":"Report","properties":{"currency":"ISO code"}}`)
	section := insert("entity", `{"name":"Section","properties":{}}`)
	relation := insert("relation", `{"source":"Report","target":"Section","rel_type":"hasSection","properties":{}}`)
	instance := insert("instance", `{"entity":"Report","properties":{"amount":"150.5"}}`)

	for _, p := range []Proposal{report, section} {
		merged, err := s.MergeProposal(ctx, p)
		if err != nil {
			t.Fatalf("merging entity: %v", err)
		}
		if !merged {
			t.Error("entity merge must report merged")
		}
	}

	merged, err := s.MergeProposal(ctx, relation)
	if err != nil {
		t.Fatalf("merging relation: %v", err)
	}
	if !merged {
		t.Error("relation with resolvable endpoints must merge")
	}

	merged, err = s.MergeProposal(ctx, instance)
	if err != nil {
		t.Fatalf("merging instance: %v", err)
	}
	if !merged {
		t.Error("instance with resolvable entity must merge")
	}

	entities, err := s.GetEntities(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entities) != 2 || entities[0].Name != "Report" {
		t.Errorf("entities = %+v", entities)
	}
	if entities[0].Properties["currency"] != "ISO code" {
		t.Errorf("entity properties = %v", entities[0].Properties)
	}

	relations, err := s.GetRelations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(relations) != 1 || relations[0].RelType != "hasSection" {
		t.Errorf("relations = %+v", relations)
	}
	if relations[0].SourceEntityID != entities[0].ID || relations[0].TargetEntityID != entities[1].ID {
		t.Errorf("relation endpoints = %+v", relations[0])
	}

	instances, err := s.GetInstances(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(instances) != 1 || instances[0].EntityID != entities[0].ID {
		t.Errorf("instances = %+v", instances)
	}
	if instances[0].Properties["amount"] != "150.5" {
		t.Errorf("instance properties = %v", instances[0].Properties)
	}
}

func TestMergeProposalUnresolvedReference(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fileID, err := s.InsertFile(ctx, File{Filename: "a.json", SHA256: "h1", Status: "completed"})
	if err != nil {
		t.Fatal(err)
	}

	id, err := s.InsertProposal(ctx, fileID, "relation",
		json.RawMessage(`{"source":"Ghost","target":"Phantom","rel_type":"haunts","properties":{}}`), "")
	if err != nil {
		t.Fatal(err)
	}
	p, err := s.GetProposal(ctx, id)
	if err != nil {
		t.Fatal(err)
	}

	// Unresolved names skip the merge without erroring, so the review flow
	// can still mark the proposal.
	merged, err := s.MergeProposal(ctx, p)
	if err != nil {
		t.Fatalf("MergeProposal: %v", err)
	}
	if merged {
		t.Error("unresolved relation must not merge")
	}

	relations, err := s.GetRelations(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(relations) != 0 {
		t.Errorf("relations = %+v, want none", relations)
	}
}

func TestMergeProposalUnknownType(t *testing.T) {
	s := newTestStore(t)

	_, err := s.MergeProposal(context.Background(), Proposal{Type: "bogus", Payload: json.RawMessage(`{}`)})
	if err == nil {
		t.Fatal("expected error for unknown proposal type")
	}
}
