package group

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/zulandar/stopyard/internal/changefeed"
	"github.com/zulandar/stopyard/internal/dbtest"
	"github.com/zulandar/stopyard/internal/models"
	"gorm.io/gorm"
)

func seed(t *testing.T) (*gorm.DB, context.Context) {
	t.Helper()
	db := dbtest.Open(t)
	ctx := context.Background()
	for _, c := range [][2]string{{"1089", "Usina Norte"}, {"1001", "Porto Sul"}} {
		if _, err := CreateCenter(ctx, db, c[0], c[1], ""); err != nil {
			t.Fatalf("CreateCenter: %v", err)
		}
	}
	return db, ctx
}

func ptr[T any](v T) *T { return &v }

func TestCreateCenter_Validation(t *testing.T) {
	db := dbtest.Open(t)
	_, err := CreateCenter(context.Background(), db, "", "x", "")
	if !errors.Is(err, models.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestListCenters_SortedByCode(t *testing.T) {
	db, ctx := seed(t)
	centers, err := ListCenters(ctx, db)
	if err != nil {
		t.Fatalf("ListCenters: %v", err)
	}
	if len(centers) != 2 || centers[0].Code != "1001" || centers[1].Code != "1089" {
		t.Errorf("centers = %+v", centers)
	}
}

func TestCreate(t *testing.T) {
	db, ctx := seed(t)
	g, err := Create(ctx, db, CreateOpts{Name: "  Moenda A ", CenterCode: "1089", Phase: "USINA", CreatedBy: "ana"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if g.ID == "" || g.Name != "Moenda A" || g.Version != 1 || g.CreatedBy != "ana" {
		t.Errorf("group = %+v", g)
	}

	events, _ := changefeed.Since(ctx, db, 0, tableGroups)
	if len(events) != 1 || events[0].Kind != models.KindInsert || events[0].RecordID != g.ID {
		t.Errorf("change events = %+v", events)
	}
}

func TestCreate_Validation(t *testing.T) {
	db, ctx := seed(t)
	tests := []struct {
		name string
		opts CreateOpts
		want error
		msg  string
	}{
		{"missing name", CreateOpts{CenterCode: "1089", Phase: "USINA"}, models.ErrValidation, "name is required"},
		{"missing center", CreateOpts{Name: "X", Phase: "USINA"}, models.ErrValidation, "location center is required"},
		{"bad phase", CreateOpts{Name: "X", CenterCode: "1089", Phase: "FABRICA"}, models.ErrValidation, "phase"},
		{"unknown center", CreateOpts{Name: "X", CenterCode: "9999", Phase: "MINA"}, models.ErrNotFound, "9999"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Create(ctx, db, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("err = %q, want to contain %q", err, tt.msg)
			}
		})
	}

	var count int64
	db.Model(&models.AssetGroup{}).Count(&count)
	if count != 0 {
		t.Errorf("group count = %d, want 0 after failed creates", count)
	}
}

func TestGet_PreloadsAssociations(t *testing.T) {
	db, ctx := seed(t)
	g, _ := Create(ctx, db, CreateOpts{Name: "Moenda", CenterCode: "1089", Phase: "USINA"})
	if _, err := AddAsset(ctx, db, g.ID, AssetOpts{Tag: "MO-002", Name: "Motor"}); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	if _, err := AddAsset(ctx, db, g.ID, AssetOpts{Tag: "MO-001", Name: "Redutor"}); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}

	got, err := Get(ctx, db, g.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Center.Name != "Usina Norte" {
		t.Errorf("Center = %+v", got.Center)
	}
	if len(got.Assets) != 2 || got.Assets[0].Tag != "MO-001" {
		t.Errorf("Assets = %+v", got.Assets)
	}
	if got.Assets[0].CenterCode != "1089" || got.Assets[0].Phase != "USINA" {
		t.Errorf("asset did not inherit center/phase: %+v", got.Assets[0])
	}
}

func TestGet_NotFound(t *testing.T) {
	db, ctx := seed(t)
	_, err := Get(ctx, db, "nope")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestList_Filters(t *testing.T) {
	db, ctx := seed(t)
	Create(ctx, db, CreateOpts{Name: "Moenda", CenterCode: "1089", Phase: "USINA"})
	Create(ctx, db, CreateOpts{Name: "Caldeira", CenterCode: "1089", Phase: "USINA"})
	Create(ctx, db, CreateOpts{Name: "Cais 1", CenterCode: "1001", Phase: "PORTO"})

	tests := []struct {
		name    string
		filters ListFilters
		want    []string
	}{
		{"all", ListFilters{}, []string{"Cais 1", "Caldeira", "Moenda"}},
		{"center", ListFilters{CenterCode: "1089"}, []string{"Caldeira", "Moenda"}},
		{"phase", ListFilters{Phase: "PORTO"}, []string{"Cais 1"}},
		{"search group", ListFilters{Search: "MOE"}, []string{"Moenda"}},
		{"search center", ListFilters{Search: "porto"}, []string{"Cais 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups, err := List(ctx, db, tt.filters)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			var names []string
			for _, g := range groups {
				names = append(names, g.Name)
			}
			if strings.Join(names, ",") != strings.Join(tt.want, ",") {
				t.Errorf("names = %v, want %v", names, tt.want)
			}
		})
	}
}

func TestUpdate_Versioned(t *testing.T) {
	db, ctx := seed(t)
	g, _ := Create(ctx, db, CreateOpts{Name: "Moenda", CenterCode: "1089", Phase: "USINA"})

	updated, err := Update(ctx, db, g.ID, 1, Patch{Name: ptr("Moenda Nova"), Phase: ptr("MINA")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Version != 2 || updated.Name != "Moenda Nova" || updated.Phase != "MINA" {
		t.Errorf("updated = %+v", updated)
	}

	_, err = Update(ctx, db, g.ID, 1, Patch{Name: ptr("Stale")})
	if !errors.Is(err, models.ErrConflict) {
		t.Errorf("stale update err = %v, want ErrConflict", err)
	}

	stored, _ := Get(ctx, db, g.ID)
	if stored.Name != "Moenda Nova" || stored.Version != 2 {
		t.Errorf("stored = %s v%d", stored.Name, stored.Version)
	}
}

func TestUpdate_Errors(t *testing.T) {
	db, ctx := seed(t)
	g, _ := Create(ctx, db, CreateOpts{Name: "Moenda", CenterCode: "1089", Phase: "USINA"})

	if _, err := Update(ctx, db, "missing", 1, Patch{Name: ptr("x")}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing err = %v, want ErrNotFound", err)
	}
	if _, err := Update(ctx, db, g.ID, 1, Patch{Phase: ptr("LUA")}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("phase err = %v, want ErrValidation", err)
	}
	if _, err := Update(ctx, db, g.ID, 1, Patch{Name: ptr(" ")}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("name err = %v, want ErrValidation", err)
	}
	if _, err := Update(ctx, db, g.ID, 1, Patch{CenterCode: ptr("0000")}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("center err = %v, want ErrNotFound", err)
	}
}

func TestAddAsset_Validation(t *testing.T) {
	db, ctx := seed(t)
	g, _ := Create(ctx, db, CreateOpts{Name: "Moenda", CenterCode: "1089", Phase: "USINA"})

	if _, err := AddAsset(ctx, db, g.ID, AssetOpts{Name: "Motor"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing tag err = %v", err)
	}
	if _, err := AddAsset(ctx, db, g.ID, AssetOpts{Tag: "X"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("missing name err = %v", err)
	}
	if _, err := AddAsset(ctx, db, "missing", AssetOpts{Tag: "X", Name: "Y"}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("missing group err = %v", err)
	}
}
