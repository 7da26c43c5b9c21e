package api

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"classbook/internal/models"

	"github.com/xuri/excelize/v2"
)

// handleExport serves GET /api/v1/admin/export: the booking-window schedule
// as an xlsx grid, classrooms down the side and dates across the top.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	path, err := s.exportSchedule(r)
	if err != nil {
		s.logger.Error().Err(err).Msg("schedule export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

func (s *Server) exportSchedule(r *http.Request) (string, error) {
	if err := os.MkdirAll(s.cfg.Exports.Path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	rooms, err := s.dir.GetAllClassrooms(r.Context())
	if err != nil {
		return "", fmt.Errorf("error getting classrooms: %w", err)
	}
	roomIDs := make([]int64, 0, len(rooms))
	for id := range rooms {
		roomIDs = append(roomIDs, id)
	}
	sort.Slice(roomIDs, func(i, j int) bool { return roomIDs[i] < roomIDs[j] })

	startDate := time.Now()
	dates := make([]string, 0, models.BookingWindowDays)
	for i := 0; i < models.BookingWindowDays; i++ {
		dates = append(dates, startDate.AddDate(0, 0, i).Format("2006-01-02"))
	}

	// reservations keyed by (classroom, date)
	grid := make(map[int64]map[string][]models.Reservation)
	for _, res := range s.reservations.ListAll() {
		if grid[res.ClassroomID] == nil {
			grid[res.ClassroomID] = make(map[string][]models.Reservation)
		}
		grid[res.ClassroomID][res.Date] = append(grid[res.ClassroomID][res.Date], res)
	}

	f := excelize.NewFile()
	defer f.Close()

	const sheetName = "Schedule"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Booking window: %s - %s",
		dates[0], dates[len(dates)-1]))

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for i, date := range dates {
		cell, _ := excelize.CoordinatesToCellName(i+2, 2)
		_ = f.SetCellValue(sheetName, cell, date)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	roomStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	cellStyle, _ := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "top", WrapText: true},
	})

	for rowIdx, roomID := range roomIDs {
		row := rowIdx + 3
		room := rooms[roomID]

		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%d seats)", room.Name, room.Capacity))
		_ = f.SetCellStyle(sheetName, cell, cell, roomStyle)

		for colIdx, date := range dates {
			dayReservations := grid[roomID][date]
			if len(dayReservations) == 0 {
				continue
			}
			sort.Slice(dayReservations, func(i, j int) bool {
				return dayReservations[i].StartTime < dayReservations[j].StartTime
			})

			var value string
			for _, res := range dayReservations {
				value += fmt.Sprintf("%s~%s %s\n", res.StartTime, res.EndTime, res.UserID)
			}
			cell, _ := excelize.CoordinatesToCellName(colIdx+2, row)
			_ = f.SetCellValue(sheetName, cell, value)
			_ = f.SetCellStyle(sheetName, cell, cell, cellStyle)
		}
	}

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'H'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 20)
	}
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("schedule_%s.xlsx", startDate.Format("2006-01-02_15-04-05"))
	path := filepath.Join(s.cfg.Exports.Path, fileName)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	s.logger.Info().Str("file_path", path).Msg("schedule export created")
	return path, nil
}
