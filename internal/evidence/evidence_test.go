package evidence

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAccessorsDistinguishMissingFromEmpty(t *testing.T) {
	a := AssetRecord{
		GUID: "g1",
		Attributes: map[Attribute]interface{}{
			AttrOwnerUsers:  []string{},
			AttrDescription: nil,
			AttrPolicyCount: 3.0,
		},
	}

	if items, fetched := a.List(AttrOwnerUsers); !fetched || len(items) != 0 {
		t.Errorf("owner_users = %v, fetched=%v; want empty, fetched", items, fetched)
	}
	if _, fetched := a.List(AttrOwnerGroups); fetched {
		t.Error("owner_groups should not be fetched")
	}
	if text, fetched := a.Text(AttrDescription); !fetched || text != "" {
		t.Errorf("description = %q, fetched=%v; want empty, fetched", text, fetched)
	}
	if n, fetched := a.Number(AttrPolicyCount); !fetched || n != 3 {
		t.Errorf("policy_count = %v, fetched=%v", n, fetched)
	}
	if a.HasNumber(AttrQueryCount) {
		t.Error("query_count should not be present")
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		name string
		attr Attribute
		raw  interface{}
		want interface{}
	}{
		{"json array string", AttrOwnerUsers, `["alice","bob"]`, []string{"alice", "bob"}},
		{"interface list", AttrTags, []interface{}{"PII", "", "none"}, []string{"PII"}},
		{"empty array text", AttrTermGUIDs, "[]", []string{}},
		{"comma list", AttrOwnerGroups, "data-eng, finance", []string{"data-eng", "finance"}},
		{"int to float", AttrQueryCount, 42, 42.0},
		{"numeric string", AttrPopularity, "0.75", 0.75},
		{"empty numeric", AttrPolicyCount, "", nil},
		{"flag string", AttrHasLineage, "true", true},
		{"flag number", AttrMCMonitored, 1, true},
		{"none text", AttrDescription, "None", ""},
		{"nil stays nil", AttrDescription, nil, nil},
		{"inf string", AttrPopularity, "inf", nil},
		{"nan string", AttrQueryCount, "NaN", nil},
		{"infinite float", AttrQueryUserCount, math.Inf(1), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeValue(tt.attr, tt.raw)
			switch want := tt.want.(type) {
			case []string:
				list, ok := got.([]string)
				if !ok || len(list) != len(want) {
					t.Fatalf("got %#v, want %#v", got, want)
				}
				for i := range want {
					if list[i] != want[i] {
						t.Errorf("item %d = %q, want %q", i, list[i], want[i])
					}
				}
			default:
				if got != tt.want {
					t.Errorf("got %#v, want %#v", got, tt.want)
				}
			}
		})
	}
}

func TestNonFiniteNumbersReadAsEmpty(t *testing.T) {
	asset := AssetRecord{
		GUID: "a1",
		Attributes: map[Attribute]interface{}{
			AttrPopularity: math.NaN(),
			AttrQueryCount: "-Inf",
		},
	}
	for _, attr := range []Attribute{AttrPopularity, AttrQueryCount} {
		if asset.HasNumber(attr) {
			t.Errorf("%s: HasNumber should be false for a non-finite value", attr)
		}
		n, fetched := asset.Number(attr)
		if !fetched || n != 0 {
			t.Errorf("%s: Number() = %v, %v; want 0, true", attr, n, fetched)
		}
	}

	norm := asset.Normalize()
	if v, ok := norm.Attributes[AttrPopularity]; !ok || v != nil {
		t.Errorf("normalized popularity = %#v, %v; want fetched nil", v, ok)
	}
}

func TestNormalizeTime(t *testing.T) {
	got := NormalizeValue(AttrSourceUpdatedAt, "2025-03-01T10:00:00Z")
	ts, ok := got.(time.Time)
	if !ok || ts.Year() != 2025 {
		t.Fatalf("got %#v", got)
	}

	got = NormalizeValue(AttrUpdatedAt, int64(1700000000000))
	if ts, ok := got.(time.Time); !ok || ts.IsZero() {
		t.Fatalf("epoch millis: got %#v", got)
	}

	if got := NormalizeValue(AttrUpdatedAt, "not a time"); got != nil {
		t.Errorf("unparsable time should be nil, got %#v", got)
	}
}

func TestNormalizeDropsUnknownAttributes(t *testing.T) {
	a := AssetRecord{
		GUID: "g1",
		Attributes: map[Attribute]interface{}{
			"favourite_colour": "blue",
			AttrTags:           "a,b",
		},
	}
	n := a.Normalize()
	if n.Fetched("favourite_colour") {
		t.Error("unknown attribute should be dropped")
	}
	if !n.Fetched(AttrTags) {
		t.Error("tags should survive normalisation")
	}
	if _, ok := a.Attributes[AttrTags].(string); !ok {
		t.Error("Normalize must not mutate the receiver's map")
	}
}

func TestMatchScope(t *testing.T) {
	tests := []struct {
		scope string
		qn    string
		want  bool
	}{
		{"", "default/snowflake/DB/SCH/T", true},
		{"all", "x", true},
		{"default/snowflake/DB", "default/snowflake/DB/SCH/T", true},
		{"default/snowflake/DB", "default/snowflake/DB2/SCH/T", false},
		{"default/snowflake/DB/SCH/T", "default/snowflake/DB/SCH/T", true},
		{"default/*/DB/**", "default/snowflake/DB/SCH/T", true},
		{"default/*/DB/*", "default/snowflake/DB/SCH/T", false},
		{"**/ORDERS", "default/snowflake/DB/SCH/ORDERS", true},
	}

	for _, tt := range tests {
		if got := MatchScope(tt.scope, tt.qn); got != tt.want {
			t.Errorf("MatchScope(%q, %q) = %v, want %v", tt.scope, tt.qn, got, tt.want)
		}
	}
}

func TestValidateScope(t *testing.T) {
	if err := ValidateScope("default/[abc/**"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
	if err := ValidateScope("default/snowflake"); err != nil {
		t.Errorf("plain scope should be valid: %v", err)
	}
}

const sampleYAML = `assets:
  - guid: a1
    name: ORDERS
    qualified_name: default/snowflake/GOLD/PUBLIC/ORDERS
    domain_guids: [sales]
    attributes:
      owner_users: [alice]
      description: Orders placed by customers
      query_count: 120
  - guid: a2
    name: RAW_EVENTS
    qualified_name: default/snowflake/RAW/PUBLIC/RAW_EVENTS
    attributes:
      owner_users: []
`

func TestFileSourceYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src := NewFileSource(path)
	b, err := src.GetEvidence(context.Background(), "default/snowflake/GOLD")
	if err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if len(b.Assets) != 1 || b.Assets[0].GUID != "a1" {
		t.Fatalf("expected only a1 in scope, got %+v", b.Assets)
	}
	if n, _ := b.Assets[0].Number(AttrQueryCount); n != 120 {
		t.Errorf("query_count = %v, want 120", n)
	}

	all, err := src.GetEvidence(context.Background(), "")
	if err != nil {
		t.Fatalf("GetEvidence all: %v", err)
	}
	if len(all.Assets) != 2 {
		t.Errorf("expected 2 assets, got %d", len(all.Assets))
	}
	if items, fetched := all.Assets[1].List(AttrOwnerUsers); !fetched || len(items) != 0 {
		t.Errorf("a2 owner_users should be fetched and empty, got %v %v", items, fetched)
	}
}

func TestWriteAndLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.json")
	in := []AssetRecord{{
		GUID:          "a1",
		QualifiedName: "q/a1",
		Attributes:    map[Attribute]interface{}{AttrTags: []string{"PII"}},
	}}
	if err := WriteFile(path, in); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	out, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if tags, _ := out[0].List(AttrTags); len(tags) != 1 || tags[0] != "PII" {
		t.Errorf("tags = %v", tags)
	}
}

func TestLoadFileRejectsAnonymousAsset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("assets:\n  - name: nobody\n"), 0644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for asset without guid or qualified_name")
	}
}

func TestCachedCollapsesFetches(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	src := SourceFunc(func(ctx context.Context, scopeID string) (*Bundle, error) {
		calls.Add(1)
		<-release
		return &Bundle{ScopeID: scopeID, Assets: []AssetRecord{{GUID: "a1"}}}, nil
	})

	c := NewCached(src, 8, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetEvidence(context.Background(), "gold"); err != nil {
				t.Errorf("GetEvidence: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("upstream calls = %d, want 1", got)
	}

	if _, err := c.GetEvidence(context.Background(), "gold"); err != nil {
		t.Fatalf("GetEvidence: %v", err)
	}
	if calls.Load() != 1 {
		t.Error("second call should be served from cache")
	}
	if stats := c.Stats(); stats.Hits < 1 || stats.Size != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}

	c.Invalidate("gold")
	if _, err := c.GetEvidence(context.Background(), "gold"); err != nil {
		t.Fatalf("GetEvidence after invalidate: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("upstream calls after invalidate = %d, want 2", calls.Load())
	}
}

func TestCachedFetchSurvivesCancelledCaller(t *testing.T) {
	var calls atomic.Int32
	var fetchCancelled atomic.Bool
	release := make(chan struct{})
	src := SourceFunc(func(ctx context.Context, scopeID string) (*Bundle, error) {
		calls.Add(1)
		<-release
		fetchCancelled.Store(ctx.Err() != nil)
		return &Bundle{ScopeID: scopeID, Assets: []AssetRecord{{GUID: "a1"}}}, nil
	})
	c := NewCached(src, 8, time.Minute)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetEvidence(ctxA, "gold")
		errA <- err
	}()
	for i := 0; calls.Load() == 0 && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
	}

	errB := make(chan error, 1)
	var bundleB *Bundle
	go func() {
		b, err := c.GetEvidence(context.Background(), "gold")
		bundleB = b
		errB <- err
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled caller: got %v, want context.Canceled", err)
	}

	close(release)
	if err := <-errB; err != nil {
		t.Fatalf("live caller failed: %v", err)
	}
	if bundleB == nil || len(bundleB.Assets) != 1 {
		t.Errorf("live caller got %+v", bundleB)
	}
	if fetchCancelled.Load() {
		t.Error("shared fetch saw the first caller's cancellation")
	}
	if c.Stats().Size != 1 {
		t.Error("shared fetch result should be cached")
	}
}

func TestCachedPropagatesErrors(t *testing.T) {
	boom := errors.New("warehouse unavailable")
	c := NewCached(SourceFunc(func(ctx context.Context, scopeID string) (*Bundle, error) {
		return nil, boom
	}), 0, 0)

	if _, err := c.GetEvidence(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("expected upstream error, got %v", err)
	}
	if c.Stats().Size != 0 {
		t.Error("failed fetch must not be cached")
	}
}

func TestCachedReturnsCopies(t *testing.T) {
	c := NewCached(SourceFunc(func(ctx context.Context, scopeID string) (*Bundle, error) {
		return &Bundle{Assets: []AssetRecord{{GUID: "a1"}, {GUID: "a2"}}}, nil
	}), 0, 0)

	first, _ := c.GetEvidence(context.Background(), "s")
	first.Assets[0].GUID = "mutated"

	second, _ := c.GetEvidence(context.Background(), "s")
	if second.Assets[0].GUID != "a1" {
		t.Error("cached bundle was mutated through a returned copy")
	}
}

func TestWatchFiresOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evidence.yaml")
	os.WriteFile(path, []byte(sampleYAML), 0644)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)
	os.WriteFile(path, []byte(sampleYAML+"\n"), 0644)

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("watch callback did not fire")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}
