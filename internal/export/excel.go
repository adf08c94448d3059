package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/domain"
	"cabanas/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

const (
	occupancySheet = "Ocupación"
	bookingsSheet  = "Reservas"
)

// Exporter renders the occupancy calendar and booking list as an xlsx
// file for the back office.
type Exporter struct {
	store  domain.Store
	clk    clock.Clock
	path   string
	logger zerolog.Logger
}

func NewExporter(store domain.Store, clk clock.Clock, path string, logger *zerolog.Logger) *Exporter {
	return &Exporter{
		store:  store,
		clk:    clk,
		path:   path,
		logger: logger.With().Str("component", "export").Logger(),
	}
}

// ExportRange writes one xlsx with a unit-by-day occupancy grid and a
// flat list of bookings touching the range, returning the file path.
func (e *Exporter) ExportRange(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if !endDate.After(startDate) {
		return "", fmt.Errorf("end date must be after start date")
	}
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	now := e.clk.Now()
	units := e.store.GetUnits()

	bookings, err := e.store.ListBookings(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeOccupancy(ctx, f, units, bookings, startDate, endDate, now); err != nil {
		return "", err
	}
	if err := e.writeBookingList(f, units, bookings); err != nil {
		return "", err
	}

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("ocupacion_%s_a_%s.xlsx",
		startDate.Format(models.DateLayout),
		endDate.Format(models.DateLayout))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeOccupancy(ctx context.Context, f *excelize.File, units []models.Unit, bookings []*models.Booking, startDate, endDate, now time.Time) error {
	index, err := f.NewSheet(occupancySheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(occupancySheet, "A1", fmt.Sprintf("Período: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	unitStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})

	// Date columns across row 2.
	dateCols := make(map[string]int)
	col := 2
	for d := startDate; d.Before(endDate); d = d.AddDate(0, 0, 1) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(occupancySheet, cell, d.Format("02.01"))
		_ = f.SetCellStyle(occupancySheet, cell, cell, headerStyle)
		dateCols[d.Format(models.DateLayout)] = col
		col++
	}

	paidStyle, _ := e.fillStyle(f, "#FFC7CE")
	heldStyle, _ := e.fillStyle(f, "#FFEB9C")
	blockedStyle, _ := e.fillStyle(f, "#D9D9D9")

	row := 3
	for _, unit := range units {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(occupancySheet, cell, unit.Name)
		_ = f.SetCellStyle(occupancySheet, cell, cell, unitStyle)

		blocks, err := e.store.BlocksIntersecting(ctx, unit.ID, startDate, endDate)
		if err != nil {
			return fmt.Errorf("error getting blocks: %v", err)
		}

		for d := startDate; d.Before(endDate); d = d.AddDate(0, 0, 1) {
			col := dateCols[d.Format(models.DateLayout)]
			cell, _ := excelize.CoordinatesToCellName(col, row)

			label, style := e.dayCell(unit, bookings, blocks, d, now, paidStyle, heldStyle, blockedStyle)
			if label != "" {
				_ = f.SetCellValue(occupancySheet, cell, label)
				_ = f.SetCellStyle(occupancySheet, cell, cell, style)
			}
		}
		row++
	}

	_ = f.SetColWidth(occupancySheet, "A", "A", 25)
	lastCol, _ := excelize.ColumnNumberToName(len(dateCols) + 1)
	_ = f.SetColWidth(occupancySheet, "B", lastCol, 8)

	_ = f.MergeCell(occupancySheet, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(occupancySheet, "A1", "A1", titleStyle)

	return nil
}

func (e *Exporter) dayCell(unit models.Unit, bookings []*models.Booking, blocks []*models.AdminBlock, day, now time.Time, paidStyle, heldStyle, blockedStyle int) (string, int) {
	for _, block := range blocks {
		if !day.Before(block.StartDate) && day.Before(block.EndDate) {
			return "bloq", blockedStyle
		}
	}
	for _, b := range bookings {
		if b.UnitID != unit.ID || !b.CoversDay(day) {
			continue
		}
		if b.Status == models.StatusPaid {
			return b.CustomerName, paidStyle
		}
		if b.IsActiveHold(now) {
			return "hold", heldStyle
		}
	}
	return "", 0
}

func (e *Exporter) writeBookingList(f *excelize.File, units []models.Unit, bookings []*models.Booking) error {
	if _, err := f.NewSheet(bookingsSheet); err != nil {
		return fmt.Errorf("error creating sheet: %v", err)
	}

	headers := []string{"ID", "Cabaña", "Llegada", "Salida", "Personas", "Toallas", "Tinaja", "Total CLP", "Estado", "Cliente", "Email", "Teléfono", "Creada"}
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(bookingsSheet, cell, h)
		_ = f.SetCellStyle(bookingsSheet, cell, cell, headerStyle)
	}

	names := make(map[int64]string, len(units))
	for _, u := range units {
		names[u.ID] = u.Name
	}

	for i, b := range bookings {
		values := []interface{}{
			b.ID,
			names[b.UnitID],
			b.StartDate.Format(models.DateLayout),
			b.EndDate.Format(models.DateLayout),
			b.PartySize,
			b.Towels,
			strings.Join(b.JacuzziDays, ", "),
			b.Price.Total,
			b.Status,
			b.CustomerName,
			b.CustomerEmail,
			b.CustomerPhone,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(bookingsSheet, cell, v)
		}
	}

	_ = f.SetColWidth(bookingsSheet, "A", "A", 38)
	_ = f.SetColWidth(bookingsSheet, "B", "M", 16)
	return nil
}

func (e *Exporter) fillStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
}
