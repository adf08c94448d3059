package export

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/database"
	"cabanas/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func setupExporter(t *testing.T) (*Exporter, *database.DB, *clock.Fixed, string) {
	logger := zerolog.Nop()
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	db.SetUnits([]models.Unit{{
		ID: 1, Slug: "rustica", Name: "Cabaña Rústica",
		CapacityMin: 2, CapacityMax: 8, BasePrice: 55000, IsActive: true,
	}})

	clk := clock.NewFixed(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	dir := t.TempDir()
	return NewExporter(db, clk, dir, &logger), db, clk, dir
}

func date(s string) time.Time {
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestExportRange(t *testing.T) {
	exporter, db, clk, dir := setupExporter(t)
	ctx := context.Background()
	now := clk.Now()

	expires := now.Add(45 * time.Minute)
	paid := &models.Booking{
		ID: uuid.NewString(), UnitID: 1, UnitName: "Cabaña Rústica",
		StartDate: date("2026-03-10"), EndDate: date("2026-03-12"),
		PartySize: 2, Status: models.StatusPending,
		Price:        models.PriceBreakdown{Nights: 2, Base: 110000, Total: 110000},
		CustomerName: "Ana Pérez", CustomerEmail: "ana@example.com",
		ExpiresAt: &expires,
	}
	require.NoError(t, db.CreateHold(ctx, paid, now))
	require.NoError(t, db.MarkPaid(ctx, paid.ID, now, "{}"))

	held := &models.Booking{
		ID: uuid.NewString(), UnitID: 1, UnitName: "Cabaña Rústica",
		StartDate: date("2026-03-15"), EndDate: date("2026-03-17"),
		PartySize: 2, Status: models.StatusPending,
		Price:        models.PriceBreakdown{Nights: 2, Base: 110000, Total: 110000},
		CustomerName: "Benito Soto", CustomerEmail: "benito@example.com",
		ExpiresAt: &expires,
	}
	require.NoError(t, db.CreateHold(ctx, held, now))

	require.NoError(t, db.CreateBlock(ctx, &models.AdminBlock{
		UnitID: 1, StartDate: date("2026-03-20"), EndDate: date("2026-03-22"),
		Reason: "mantencion",
	}))

	filePath, err := exporter.ExportRange(ctx, date("2026-03-01"), date("2026-04-01"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ocupacion_2026-03-01_a_2026-04-01.xlsx"), filePath)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	assert.Contains(t, sheets, "Ocupación")
	assert.Contains(t, sheets, "Reservas")

	// Occupancy grid: unit row 3, date columns start at B for 03-01.
	// 03-10 paid -> customer name, 03-15 hold, 03-20 blocked.
	cellFor := func(day string) string {
		offset := int(date(day).Sub(date("2026-03-01")).Hours() / 24)
		name, err := excelize.CoordinatesToCellName(2+offset, 3)
		require.NoError(t, err)
		return name
	}

	val, err := f.GetCellValue("Ocupación", cellFor("2026-03-10"))
	require.NoError(t, err)
	assert.Equal(t, "Ana Pérez", val)

	val, err = f.GetCellValue("Ocupación", cellFor("2026-03-15"))
	require.NoError(t, err)
	assert.Equal(t, "hold", val)

	val, err = f.GetCellValue("Ocupación", cellFor("2026-03-20"))
	require.NoError(t, err)
	assert.Equal(t, "bloq", val)

	val, err = f.GetCellValue("Ocupación", cellFor("2026-03-05"))
	require.NoError(t, err)
	assert.Empty(t, val)

	// Booking list has a header plus one row per booking.
	rows, err := f.GetRows("Reservas")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "ID", rows[0][0])
}

func TestExportRangeLapsedHoldNotShown(t *testing.T) {
	exporter, db, clk, _ := setupExporter(t)
	ctx := context.Background()
	now := clk.Now()

	lapsed := now.Add(-time.Minute)
	hold := &models.Booking{
		ID: uuid.NewString(), UnitID: 1, UnitName: "Cabaña Rústica",
		StartDate: date("2026-03-15"), EndDate: date("2026-03-17"),
		PartySize: 2, Status: models.StatusPending,
		Price:        models.PriceBreakdown{Nights: 2, Base: 110000, Total: 110000},
		CustomerName: "Ana Pérez", CustomerEmail: "ana@example.com",
		ExpiresAt: &lapsed,
	}
	require.NoError(t, db.CreateHold(ctx, hold, now.Add(-time.Hour)))

	filePath, err := exporter.ExportRange(ctx, date("2026-03-01"), date("2026-04-01"))
	require.NoError(t, err)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	cell, err := excelize.CoordinatesToCellName(2+14, 3) // 2026-03-15
	require.NoError(t, err)
	val, err := f.GetCellValue("Ocupación", cell)
	require.NoError(t, err)
	assert.Empty(t, val, "a lapsed hold must not occupy the grid")
}

func TestExportRangeValidation(t *testing.T) {
	exporter, _, _, _ := setupExporter(t)
	_, err := exporter.ExportRange(context.Background(), date("2026-03-10"), date("2026-03-10"))
	assert.Error(t, err)
}
