package orchestrators

import (
	"context"
	"errors"
	"testing"

	"cellule/internal/adapters/storage"
	"cellule/internal/adapters/upload"
	"cellule/internal/application/collections"
	"cellule/internal/domain/errs"
	"cellule/internal/domain/media"
)

// failingWriteStore reads normally but fails every write.
type failingWriteStore struct{ storage.Store }

func (failingWriteStore) Write(context.Context, string, any) error {
	return errs.Connectivity("write", errors.New("offline"))
}

func TestExecuteCreateEvent_CropUploadWrite(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	up := &mockUploader{}
	events := collections.NewEvents(store, up)

	var stages []string
	created, err := ExecuteCreateEvent(context.Background(), CreateEventInput{
		Name:        "Hackathon",
		Description: "48h de code",
		Photo:       testImage(t, 400, 400),
		Video:       &VideoInput{Name: "clip.mp4", ContentType: "video/mp4", Body: bytesReader("video")},
		OnProgress:  func(stage string, pct int) { stages = append(stages, stage) },
	}, CreateEventDeps{Events: events, Media: MediaDeps{Uploader: up}})
	if err != nil {
		t.Fatalf("ExecuteCreateEvent: %v", err)
	}
	if created.PhotoURL != "https://cdn.example/image/1" || created.VideoURL != "https://cdn.example/video/2" {
		t.Errorf("urls = %q, %q", created.PhotoURL, created.VideoURL)
	}
	if up.uploads[0].ContentType != "image/jpeg" || up.uploads[0].Name != "photo.jpg" {
		t.Errorf("photo upload = %+v", up.uploads[0])
	}
	if len(stages) == 0 || stages[0] != "photo" || stages[len(stages)-1] != "video" {
		t.Errorf("stages = %v", stages)
	}
	list, _ := events.List(context.Background())
	if len(list) != 1 || list[0].ID != created.ID {
		t.Errorf("list = %+v", list)
	}
}

func TestExecuteCreateEvent_ValidatesBeforeUpload(t *testing.T) {
	up := &mockUploader{}
	store := storage.NewMemoryStore()
	defer store.Close()

	_, err := ExecuteCreateEvent(context.Background(), CreateEventInput{
		Name: "", Description: "d", Photo: testImage(t, 10, 10),
	}, CreateEventDeps{Events: collections.NewEvents(store, up), Media: MediaDeps{Uploader: up}})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = ExecuteCreateEvent(context.Background(), CreateEventInput{Name: "n", Description: "d"},
		CreateEventDeps{Events: collections.NewEvents(store, up), Media: MediaDeps{Uploader: up}})
	var ve *errs.ValidationError
	if !errors.As(err, &ve) || ve.Field != "photoUrl" {
		t.Fatalf("expected photoUrl required, got %v", err)
	}
	if len(up.uploads) != 0 {
		t.Errorf("nothing should be uploaded, got %d", len(up.uploads))
	}
}

func TestExecuteCreateEvent_DiscardsUploadsWhenWriteFails(t *testing.T) {
	mem := storage.NewMemoryStore()
	defer mem.Close()
	up := &mockUploader{}
	events := collections.NewEvents(failingWriteStore{mem}, up)

	_, err := ExecuteCreateEvent(context.Background(), CreateEventInput{
		Name: "n", Description: "d", Photo: testImage(t, 10, 10),
	}, CreateEventDeps{Events: events, Media: MediaDeps{Uploader: up}})
	if !errors.Is(err, errs.ErrConnectivity) {
		t.Fatalf("expected connectivity error, got %v", err)
	}
	if len(up.removed) != 1 || up.removed[0] != "https://cdn.example/image/1" {
		t.Errorf("removed = %v", up.removed)
	}
}

func TestExecuteCreateEvent_VideoFailureDiscardsPhoto(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	up := &mockUploader{failKind: upload.KindVideo}

	_, err := ExecuteCreateEvent(context.Background(), CreateEventInput{
		Name: "n", Description: "d", Photo: testImage(t, 10, 10),
		Video: &VideoInput{Name: "v.mp4", Body: bytesReader("v")},
	}, CreateEventDeps{Events: collections.NewEvents(store, up), Media: MediaDeps{Uploader: up}})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(up.removed) != 1 {
		t.Errorf("photo should be discarded, removed = %v", up.removed)
	}
}

func TestExecuteUpdateEvent_ReplacesMedia(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	up := &mockUploader{}
	events := collections.NewEvents(store, up)
	ctx := context.Background()

	created, err := ExecuteCreateEvent(ctx, CreateEventInput{
		Name: "Old", Description: "d", Photo: testImage(t, 10, 10),
		Video: &VideoInput{Name: "v.mp4", Body: bytesReader("v")},
	}, CreateEventDeps{Events: events, Media: MediaDeps{Uploader: up}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "New"
	updated, err := ExecuteUpdateEvent(ctx, UpdateEventInput{
		ID: created.ID, Name: &name,
		Photo:       &ImageInput{Name: "p.png", Body: testImage(t, 20, 10).Body, Crop: &media.Rect{X: 0, Y: 0, W: 16, H: 9}},
		RemoveVideo: true,
	}, UpdateEventDeps{Events: events, Media: MediaDeps{Uploader: up}})
	if err != nil {
		t.Fatalf("ExecuteUpdateEvent: %v", err)
	}
	if updated.Name != "New" || updated.Description != "d" || updated.VideoURL != "" {
		t.Errorf("updated = %+v", updated)
	}
	if updated.PhotoURL == created.PhotoURL {
		t.Error("photo should be replaced")
	}
	if len(up.removed) != 2 || up.removed[0] != created.PhotoURL || up.removed[1] != created.VideoURL {
		t.Errorf("removed = %v", up.removed)
	}
}

func TestExecuteUpdateEvent_RejectsEmptyName(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	up := &mockUploader{}
	events := collections.NewEvents(store, up)
	ctx := context.Background()
	created, _ := ExecuteCreateEvent(ctx, CreateEventInput{Name: "n", Description: "d", Photo: testImage(t, 10, 10)},
		CreateEventDeps{Events: events, Media: MediaDeps{Uploader: up}})

	empty := "  "
	_, err := ExecuteUpdateEvent(ctx, UpdateEventInput{ID: created.ID, Name: &empty, Photo: testImage(t, 10, 10)},
		UpdateEventDeps{Events: events, Media: MediaDeps{Uploader: up}})
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(up.uploads) != 1 {
		t.Errorf("no upload expected for rejected update, got %d total", len(up.uploads))
	}
}

func TestExecuteUpdateEvent_Missing(t *testing.T) {
	store := storage.NewMemoryStore()
	defer store.Close()
	up := &mockUploader{}
	_, err := ExecuteUpdateEvent(context.Background(), UpdateEventInput{ID: "nope"},
		UpdateEventDeps{Events: collections.NewEvents(store, up), Media: MediaDeps{Uploader: up}})
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
