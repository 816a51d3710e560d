package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v3"

	"hotelmap/internal/service"
	"hotelmap/internal/storage"
)

func newTestApp(t *testing.T) (*fiber.App, *service.MapService) {
	t.Helper()
	db, err := storage.New(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	p := service.NewPersistence(storage.NewSlotStore(db), "hotelHopperData", "", storage.NewRevisionStore(db, 10), nil)
	svc := service.NewMapService(p, service.NewTransferService(0), nil, 0)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	backups := service.NewBackupService(svc, filepath.Join(t.TempDir(), "backups"), 3, nil)
	return New(svc, backups, nil, Options{Quiet: true}), svc
}

func do(t *testing.T, app *fiber.App, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	return resp, data
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)
	resp, body := do(t, app, "GET", "/health/ready", "")
	if resp.StatusCode != 200 || !strings.Contains(string(body), `"ready"`) {
		t.Fatalf("ready = %d %s", resp.StatusCode, body)
	}
}

func TestFloorLifecycle(t *testing.T) {
	app, _ := newTestApp(t)

	resp, body := do(t, app, "POST", "/api/v1/floors", `{"name":"Second"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d %s", resp.StatusCode, body)
	}
	var created struct {
		ID int `json:"id"`
	}
	json.Unmarshal(body, &created)
	if created.ID != 2 {
		t.Fatalf("id = %d", created.ID)
	}

	resp, body = do(t, app, "POST", "/api/v1/floors", `{"name":"  "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("blank name = %d %s", resp.StatusCode, body)
	}

	resp, _ = do(t, app, "PATCH", "/api/v1/floors/2", `{"name":"Pool Deck"}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("rename = %d", resp.StatusCode)
	}

	resp, _ = do(t, app, "DELETE", "/api/v1/floors/2", "")
	if resp.StatusCode != http.StatusPreconditionRequired {
		t.Errorf("delete without confirm = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "DELETE", "/api/v1/floors/2?confirm=true", "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "GET", "/api/v1/floors/2", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get deleted floor = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "GET", "/api/v1/floors/abc", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad id = %d", resp.StatusCode)
	}
}

func TestMarkersAndConnections(t *testing.T) {
	app, svc := newTestApp(t)

	ids := make([]string, 0, 2)
	for _, body := range []string{
		`{"x":10,"y":20,"name":"Lobby","icon":"door"}`,
		`{"x":60,"y":20,"name":"Cafe","icon":"coffee"}`,
	} {
		resp, data := do(t, app, "POST", "/api/v1/floors/1/markers", body)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("add marker = %d %s", resp.StatusCode, data)
		}
		var out struct {
			ID string `json:"id"`
		}
		json.Unmarshal(data, &out)
		ids = append(ids, out.ID)
	}

	resp, _ := do(t, app, "POST", "/api/v1/floors/1/markers", `{"x":120,"y":20,"name":"Off","icon":"bed"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("out of range marker = %d", resp.StatusCode)
	}

	_, data := do(t, app, "POST", "/api/v1/floors/1/connections", `{"from":"`+ids[0]+`","to":"`+ids[1]+`"}`)
	if !strings.Contains(string(data), `"connected"`) {
		t.Errorf("connect = %s", data)
	}
	_, data = do(t, app, "POST", "/api/v1/floors/1/connections", `{"from":"`+ids[1]+`","to":"`+ids[0]+`"}`)
	if !strings.Contains(string(data), `"already connected"`) {
		t.Errorf("reverse connect = %s", data)
	}

	resp, _ = do(t, app, "DELETE", "/api/v1/floors/1/markers/"+ids[0], "")
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete marker = %d", resp.StatusCode)
	}
	if st, _ := svc.Stats(1); st.Markers != 1 || st.Connections != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestExportImport(t *testing.T) {
	app, svc := newTestApp(t)
	svc.AddFloor(context.Background(), "Roof")

	resp, data := do(t, app, "GET", "/api/v1/export", "")
	if resp.StatusCode != 200 {
		t.Fatalf("export = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "hotel-hopper-data-") {
		t.Errorf("Content-Disposition = %q", cd)
	}

	other, otherSvc := newTestApp(t)
	resp, body := do(t, other, "POST", "/api/v1/import?confirm=true", string(data))
	if resp.StatusCode != 200 {
		t.Fatalf("import = %d %s", resp.StatusCode, body)
	}
	if n := len(otherSvc.Floors()); n != 2 {
		t.Errorf("imported floors = %d", n)
	}

	resp, _ = do(t, other, "POST", "/api/v1/import?confirm=true", `{"nope":1}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid import = %d", resp.StatusCode)
	}
}

func TestPreviewAndImageUpload(t *testing.T) {
	app, _ := newTestApp(t)

	resp, data := do(t, app, "GET", "/api/v1/floors/1/preview.png?width=200", "")
	if resp.StatusCode != 200 || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("preview = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("preview is not a PNG")
	}

	// Re-upload the preview as the floor plan.
	req := httptest.NewRequest("PUT", "/api/v1/floors/1/image", bytes.NewReader(data))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("upload = %d", resp.StatusCode)
	}

	resp, _ = do(t, app, "PUT", "/api/v1/floors/1/image", "not an image")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad upload = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "GET", "/api/v1/floors/1/preview.png?width=0", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad width = %d", resp.StatusCode)
	}
}

func TestRevisionsAndBackups(t *testing.T) {
	app, _ := newTestApp(t)

	_, data := do(t, app, "GET", "/api/v1/revisions", "")
	var revs []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &revs); err != nil || len(revs) == 0 {
		t.Fatalf("revisions = %s", data)
	}

	resp, _ := do(t, app, "POST", "/api/v1/revisions/"+revs[0].ID+"/restore?confirm=true", "")
	if resp.StatusCode != 200 {
		t.Errorf("restore = %d", resp.StatusCode)
	}

	resp, _ = do(t, app, "POST", "/api/v1/backups", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("backup = %d", resp.StatusCode)
	}
	_, data = do(t, app, "GET", "/api/v1/backups", "")
	if !strings.Contains(string(data), "hotel-hopper-backup-") {
		t.Errorf("backups = %s", data)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{errConfirmRequired, http.StatusPreconditionRequired},
		{fiber.NewError(http.StatusTeapot, "x"), http.StatusTeapot},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestBulkMarkerLoad(t *testing.T) {
	app, svc := newTestApp(t)

	csv := "Room;Type;Left;Top\n101;bed;10;10\nGym;dumbbell;;\nTank;shark;;\n"
	resp, data := do(t, app, "POST", "/api/v1/floors/1/markers/bulk?delimiter=%3B&name=room&icon=type&x=left&y=top", csv)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("bulk = %d %s", resp.StatusCode, data)
	}
	var out struct {
		RowsRead int `json:"rowsRead"`
		Placed   []struct {
			Name string `json:"name"`
		} `json:"placed"`
		Skipped []struct {
			Row int `json:"row"`
		} `json:"skipped"`
	}
	json.Unmarshal(data, &out)
	if out.RowsRead != 3 || len(out.Placed) != 2 || len(out.Skipped) != 1 || out.Skipped[0].Row != 3 {
		t.Errorf("bulk result = %s", data)
	}

	resp, _ = do(t, app, "POST", "/api/v1/floors/1/markers/bulk?format=json&mode=replace", `[{"name":"Spa","icon":"soap"}]`)
	if resp.StatusCode != http.StatusPreconditionRequired {
		t.Errorf("replace without confirm = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/floors/1/markers/bulk?format=json&mode=replace&confirm=true&dataPath=rooms", `{"rooms":[{"name":"Spa","icon":"soap"}]}`)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("replace = %d", resp.StatusCode)
	}
	if st, _ := svc.Stats(1); st.Markers != 1 {
		t.Errorf("markers after replace = %d", st.Markers)
	}

	resp, data = do(t, app, "POST", "/api/v1/floors/1/markers/bulk", "name,icon\n,bed\n")
	if resp.StatusCode != http.StatusBadRequest || !strings.Contains(string(data), `"skipped"`) {
		t.Errorf("no usable rows = %d %s", resp.StatusCode, data)
	}
	resp, _ = do(t, app, "POST", "/api/v1/floors/1/markers/bulk?format=xml", "<rooms/>")
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("xml = %d", resp.StatusCode)
	}
	resp, _ = do(t, app, "POST", "/api/v1/floors/4/markers/bulk", "name\nX\n")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown floor = %d", resp.StatusCode)
	}

	_, data = do(t, app, "GET", "/api/v1/marker-sources", "")
	if !strings.Contains(string(data), `"csv"`) {
		t.Errorf("sources = %s", data)
	}
}
