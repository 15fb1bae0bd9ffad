//nolint:varnamelen // Test files use idiomatic short variable names (t, g, etc.)
package syncengine_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	. "github.com/onsi/gomega" //nolint:revive // Dot import is idiomatic for Gomega matchers

	"github.com/joe/savegames/internal/games"
	"github.com/joe/savegames/internal/refresh"
	"github.com/joe/savegames/internal/savegame"
	"github.com/joe/savegames/internal/syncengine"
	"github.com/joe/savegames/pkg/gamebryo"
	"github.com/joe/savegames/pkg/gamebryo/gamebryotest"
)

// recorder is both the publisher and the event emitter of an engine under test.
type recorder struct {
	mu       sync.Mutex
	events   []syncengine.Event
	catalogs []savegame.Catalog
	clears   int
}

func (r *recorder) Emit(event syncengine.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) ReplaceCatalog(catalog savegame.Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.catalogs = append(r.catalogs, catalog)
}

func (r *recorder) ClearCatalog() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clears++
}

func (r *recorder) Published() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.catalogs)
}

func (r *recorder) LastIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.catalogs) == 0 {
		return nil
	}

	return r.catalogs[len(r.catalogs)-1].IDs()
}

func (r *recorder) Notifications() []syncengine.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []syncengine.Notification

	for _, event := range r.events {
		if n, ok := event.(syncengine.Notification); ok {
			out = append(out, n)
		}
	}

	return out
}

func (r *recorder) Activities() []syncengine.Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []syncengine.Event

	for _, event := range r.events {
		switch event.(type) {
		case syncengine.ActivityStarted, syncengine.ActivityStopped:
			out = append(out, event)
		}
	}

	return out
}

type fixture struct {
	engine *syncengine.Engine
	rec    *recorder
	clock  *refresh.ManualClock
	docs   string
}

func newFixture(t *testing.T, mutate func(cfg *syncengine.Config)) *fixture {
	t.Helper()

	f := &fixture{
		rec:   &recorder{},
		clock: refresh.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		docs:  t.TempDir(),
	}

	cfg := syncengine.Config{
		Resolver:   games.Resolver{DocumentsDir: f.docs},
		Publisher:  f.rec,
		Emitter:    f.rec,
		Clock:      f.clock,
		Focused:    true,
		LoadDetail: true,
		RetryPolicy: savegame.RetryPolicy{
			Retries:    1,
			Delay:      time.Millisecond,
			MaxDelay:   time.Millisecond,
			Multiplier: 1,
		},
	}

	if mutate != nil {
		mutate(&cfg)
	}

	f.engine = syncengine.New(cfg)
	t.Cleanup(f.engine.Close)

	return f
}

func profile(id string, local bool) games.Profile {
	return games.Profile{ID: id, Name: id, GameID: "skyrimse", LocalSaves: local}
}

func (f *fixture) saveDir(t *testing.T, p games.Profile) string {
	t.Helper()

	dir, err := games.Resolver{DocumentsDir: f.docs}.SaveDirectory(p)
	if err != nil {
		t.Fatalf("failed to resolve save directory: %v", err)
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("failed to create %s: %v", dir, err)
	}

	return dir
}

func writeSave(t *testing.T, dir, name string, saveNumber uint32) {
	t.Helper()

	gamebryotest.Write(t, filepath.Join(dir, name), gamebryotest.Save{
		Format:        gamebryo.FormatSkyrimSE,
		SaveNumber:    saveNumber,
		CharacterName: "Serana",
		Level:         12,
		Location:      "Dimhollow Crypt",
		CreationTime:  time.Date(2024, 5, 1, 12, 0, int(saveNumber), 0, time.UTC),
		Plugins:       []string{"Skyrim.esm", "Dawnguard.esm"},
		Width:         2,
		Height:        2,
		Compression:   gamebryotest.CompressionZlib,
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestSetProfile_ScansAndPublishesImmediately(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	p := profile("main", false)
	dir := f.saveDir(t, p)
	writeSave(t, dir, "quicksave.ess", 1)
	writeSave(t, dir, "autosave1.ess", 2)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a save")

	err := f.engine.SetProfile(context.Background(), p)

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.engine.Dir()).To(Equal(dir))
	g.Expect(f.rec.clears).To(Equal(1))
	g.Expect(f.rec.LastIDs()).To(Equal([]string{"autosave1.ess", "quicksave.ess"}))

	save, ok := f.engine.Catalog().Get("quicksave.ess")
	g.Expect(ok).To(BeTrue())
	g.Expect(save.Detail).ToNot(BeNil())
	g.Expect(save.Detail.CharacterName).To(Equal("Serana"))
	g.Expect(save.Detail.Screenshot.Width).To(Equal(2))

	g.Expect(f.rec.Activities()).To(Equal([]syncengine.Event{
		syncengine.ActivityStarted{Name: syncengine.RefreshKey},
		syncengine.ActivityStopped{Name: syncengine.RefreshKey},
	}))

	active, ok := f.engine.Profile()
	g.Expect(ok).To(BeTrue())
	g.Expect(active.ID).To(Equal("main"))
}

func TestSetProfile_CreatesMissingSaveDirectory(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)

	err := f.engine.SetProfile(context.Background(), profile("fresh", true))

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.engine.Dir()).To(BeADirectory())
	g.Expect(f.engine.Catalog().Len()).To(Equal(0))
	g.Expect(f.rec.Published()).To(Equal(0), "an empty directory leaves the cleared catalog as it is")
}

func TestSetProfile_UnsupportedGame(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)

	err := f.engine.SetProfile(context.Background(), games.Profile{ID: "p", GameID: "morrowind"})

	g.Expect(errors.Is(err, games.ErrUnsupportedGame)).To(BeTrue())
	g.Expect(f.engine.Dir()).To(BeEmpty())
}

func TestRefresh_UnchangedDirectoryIsNotRepublished(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	p := profile("main", false)
	dir := f.saveDir(t, p)
	writeSave(t, dir, "quicksave.ess", 1)

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())
	g.Expect(f.rec.Published()).To(Equal(1))

	g.Expect(f.engine.Refresh(context.Background())).To(Succeed())
	g.Expect(f.rec.Published()).To(Equal(1))

	writeSave(t, dir, "Save 3 - Serana.ess", 3)

	g.Expect(f.engine.Refresh(context.Background())).To(Succeed())
	g.Expect(f.rec.Published()).To(Equal(2))
	g.Expect(f.rec.LastIDs()).To(ContainElement("Save 3 - Serana.ess"))
}

func TestRefresh_WithoutProfile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)

	g.Expect(f.engine.Refresh(context.Background())).To(MatchError(syncengine.ErrNoProfile))
}

func TestRefresh_WaitsForFocus(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, func(cfg *syncengine.Config) { cfg.Focused = false })
	p := profile("main", false)
	dir := f.saveDir(t, p)
	writeSave(t, dir, "quicksave.ess", 1)

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())
	g.Expect(f.rec.Published()).To(Equal(0))

	pending, ok := f.engine.Pending()
	g.Expect(ok).To(BeTrue())
	g.Expect(pending.Dir).To(Equal(dir))

	f.engine.SetFocused(true)
	f.clock.Advance(refresh.DefaultQuietPeriod)

	g.Eventually(f.rec.Published).Should(Equal(1))
	g.Expect(f.engine.Focused()).To(BeTrue())
}

func TestWatch_FileChangesRefreshAfterQuietPeriod(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	p := profile("main", false)
	dir := f.saveDir(t, p)

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())

	writeSave(t, dir, "quicksave.ess", 1)

	g.Eventually(func() bool {
		_, ok := f.engine.Pending()

		return ok
	}).Should(BeTrue())
	g.Expect(f.rec.Published()).To(Equal(0))

	g.Eventually(func() []string {
		f.clock.Advance(refresh.DefaultQuietPeriod)

		return f.rec.LastIDs()
	}).Should(Equal([]string{"quicksave.ess"}))
}

func TestLoadDetail_ReadsOnDemand(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, func(cfg *syncengine.Config) { cfg.LoadDetail = false })
	p := profile("main", false)
	dir := f.saveDir(t, p)
	writeSave(t, dir, "quicksave.ess", 7)

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())

	stub, _ := f.engine.Catalog().Get("quicksave.ess")
	g.Expect(stub.Detail).To(BeNil())

	loaded, err := f.engine.LoadDetail(context.Background(), "quicksave.ess")

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(loaded.Detail.SaveNumber).To(Equal(uint32(7)))
	g.Expect(stub.Detail).To(BeNil(), "records are replaced, never mutated")

	current, _ := f.engine.Catalog().Get("quicksave.ess")
	g.Expect(current.Detail).ToNot(BeNil())
	g.Expect(f.rec.Published()).To(Equal(2))

	// An unchanged file keeps its detail across refreshes.
	writeSave(t, dir, "autosave1.ess", 8)
	g.Expect(f.engine.Refresh(context.Background())).To(Succeed())

	kept, _ := f.engine.Catalog().Get("quicksave.ess")
	g.Expect(kept.Detail).To(BeIdenticalTo(current.Detail))
}

func TestRefresh_OverwrittenSaveDropsStaleDetail(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, func(cfg *syncengine.Config) { cfg.LoadDetail = false })
	p := profile("main", false)
	dir := f.saveDir(t, p)
	path := filepath.Join(dir, "quicksave.ess")
	writeSave(t, dir, "quicksave.ess", 1)

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())

	first, err := f.engine.LoadDetail(context.Background(), "quicksave.ess")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(first.Detail.SaveNumber).To(Equal(uint32(1)))

	// The game rewrites the quicksave in place.
	writeSave(t, dir, "quicksave.ess", 99)
	later := first.ModTime.Add(time.Hour)
	g.Expect(os.Chtimes(path, later, later)).To(Succeed())

	published := f.rec.Published()
	g.Expect(f.engine.Refresh(context.Background())).To(Succeed())
	g.Expect(f.rec.Published()).To(Equal(published + 1))

	current, ok := f.engine.Catalog().Get("quicksave.ess")
	g.Expect(ok).To(BeTrue())
	g.Expect(current.Detail).To(BeNil())
	g.Expect(current.ModTime).To(BeTemporally("==", later))

	reloaded, err := f.engine.LoadDetail(context.Background(), "quicksave.ess")
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(reloaded.Detail.SaveNumber).To(Equal(uint32(99)))
}

func TestLoadDetail_UnknownSave(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)

	_, err := f.engine.LoadDetail(context.Background(), "ghost.ess")

	g.Expect(errors.Is(err, syncengine.ErrUnknownSave)).To(BeTrue())
}

func TestRefresh_UnreadableSavesAreReportedOnce(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	p := profile("main", false)
	dir := f.saveDir(t, p)
	writeSave(t, dir, "good.ess", 1)
	writeFile(t, filepath.Join(dir, "broken.ess"), "garbage")

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())

	g.Expect(f.rec.LastIDs()).To(Equal([]string{"broken.ess", "good.ess"}))

	notifications := f.rec.Notifications()
	g.Expect(notifications).To(HaveLen(1))
	g.Expect(notifications[0].Details).To(Equal([]string{"broken.ess"}))
	g.Expect(notifications[0].AllowReport).To(BeFalse())

	g.Expect(f.engine.Refresh(context.Background())).To(Succeed())
	g.Expect(f.rec.Notifications()).To(HaveLen(1))
}

func TestDelete_RemovesSaveAndSidecarThenRescans(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	p := profile("main", false)
	dir := f.saveDir(t, p)
	writeSave(t, dir, "quicksave.ess", 1)
	writeFile(t, filepath.Join(dir, "quicksave.skse"), "co-save")
	writeSave(t, dir, "autosave1.ess", 2)

	g.Expect(f.engine.SetProfile(context.Background(), p)).To(Succeed())

	result, err := f.engine.Delete(context.Background(), []string{"quicksave.ess"})

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result.Done).To(Equal([]string{"quicksave.ess", "quicksave.skse"}))
	g.Expect(filepath.Join(dir, "quicksave.skse")).ToNot(BeAnExistingFile())
	g.Expect(f.engine.Catalog().IDs()).To(Equal([]string{"autosave1.ess"}))
	g.Expect(f.rec.events).To(ContainElement(syncengine.Succeeded{
		Operation: savegame.OpDelete,
		Files:     []string{"quicksave.ess", "quicksave.skse"},
	}))
}

func TestDelete_WithoutProfile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)

	_, err := f.engine.Delete(context.Background(), []string{"quicksave.ess"})

	g.Expect(err).To(MatchError(syncengine.ErrNoProfile))
}

func TestTransferProfiles_MoveRescansActiveProfile(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	main := profile("main", false)
	alt := profile("alt", true)
	source := f.saveDir(t, main)
	writeSave(t, source, "quicksave.ess", 1)
	writeFile(t, filepath.Join(source, "quicksave.skse"), "co-save")
	writeSave(t, source, "autosave1.ess", 2)

	g.Expect(f.engine.SetProfile(context.Background(), main)).To(Succeed())

	result, err := f.engine.TransferProfiles(context.Background(), main, alt, []string{"quicksave.ess"}, false)

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result.Failures).To(BeEmpty())

	dest := filepath.Join(source, "alt")
	g.Expect(filepath.Join(dest, "quicksave.ess")).To(BeAnExistingFile())
	g.Expect(filepath.Join(dest, "quicksave.skse")).To(BeAnExistingFile())
	g.Expect(f.engine.Catalog().IDs()).To(Equal([]string{"autosave1.ess"}))
}

func TestTransferProfiles_CopiesEverySaveWhenNoneNamed(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	main := profile("main", false)
	alt := profile("alt", true)
	source := f.saveDir(t, main)
	writeSave(t, source, "quicksave.ess", 1)
	writeFile(t, filepath.Join(source, "quicksave.skse"), "co-save")
	writeSave(t, source, "autosave1.ess", 2)
	writeFile(t, filepath.Join(source, "autosave1.skse"), "co-save")

	result, err := f.engine.TransferProfiles(context.Background(), main, alt, nil, true)

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result.Failures).To(BeEmpty())
	g.Expect(filepath.Join(source, "quicksave.ess")).To(BeAnExistingFile())
	g.Expect(filepath.Join(source, "alt", "quicksave.ess")).To(BeAnExistingFile())
	g.Expect(filepath.Join(source, "alt", "autosave1.ess")).To(BeAnExistingFile())
}

func TestTransfer_FailuresBecomeOneNotification(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	source := t.TempDir()
	dest := t.TempDir()
	writeSave(t, source, "quicksave.ess", 1)

	result := f.engine.Transfer(context.Background(), savegame.TransferRequest{
		Files:      []string{"quicksave.ess", "missing.ess"},
		SourceDir:  source,
		DestDir:    dest,
		KeepSource: true,
		GameID:     "skyrimse",
	})

	g.Expect(result.Failed()).To(BeTrue())

	notifications := f.rec.Notifications()
	g.Expect(notifications).To(HaveLen(1))
	g.Expect(notifications[0].Key).To(Equal(syncengine.ActivityTransfer))
	g.Expect(notifications[0].Details).To(HaveLen(len(result.Failures)))
	g.Expect(notifications[0].Details[0]).To(HavePrefix("quicksave.skse - "))
	g.Expect(notifications[0].AllowReport).To(BeFalse(), "a missing file is the user's to fix")
}

func TestImportScan_ReportsFailedReadsAndRescansAfterTransfer(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	main := profile("main", false)
	dir := f.saveDir(t, main)
	writeSave(t, dir, "quicksave.ess", 1)

	g.Expect(f.engine.SetProfile(context.Background(), main)).To(Succeed())

	importDir := t.TempDir()
	writeSave(t, importDir, "Save 9 - Serana.ess", 9)
	writeFile(t, filepath.Join(importDir, "Save 9 - Serana.skse"), "co-save")
	writeFile(t, filepath.Join(importDir, "broken.fos"), "garbage")

	result, err := f.engine.ImportScan(context.Background(), importDir)

	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(result.Savegames).To(HaveLen(2))
	g.Expect(result.FailedReads).To(Equal([]string{"broken.fos"}))
	g.Expect(f.rec.Notifications()).To(HaveLen(1))

	f.engine.Transfer(context.Background(), savegame.TransferRequest{
		Files:     []string{"Save 9 - Serana.ess"},
		SourceDir: importDir,
		DestDir:   dir,
		GameID:    "skyrimse",
	})

	g.Expect(f.engine.Catalog().IDs()).To(Equal([]string{"Save 9 - Serana.ess", "quicksave.ess"}))

	var rescans []*savegame.ScanResult

	for _, event := range f.rec.events {
		if scanned, ok := event.(syncengine.ImportScanned); ok {
			rescans = append(rescans, scanned.Result)
		}
	}

	g.Expect(rescans).To(HaveLen(2))
	g.Expect(rescans[1].Savegames).To(HaveLen(1))
}

func TestImportScan_ListingFailure(t *testing.T) {
	t.Parallel()
	g := NewWithT(t)

	f := newFixture(t, nil)
	file := filepath.Join(t.TempDir(), "file.ess")
	writeFile(t, file, "x")

	_, err := f.engine.ImportScan(context.Background(), filepath.Join(file, "Saves"))

	g.Expect(errors.Is(err, savegame.ErrListing)).To(BeTrue())
	g.Expect(f.rec.Notifications()).To(HaveLen(1))
}
