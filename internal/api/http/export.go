package http

import (
	"bytes"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/xuri/excelize/v2"

	"github.com/schoolmark/schoolmark/internal/auth"
	"github.com/schoolmark/schoolmark/internal/exam"
	"github.com/schoolmark/schoolmark/internal/grading"
	"github.com/schoolmark/schoolmark/internal/storage"
)

// GET /tests/{testID}/results/export
//
// Streams an xlsx workbook with one row per attempt, for teachers who
// want the class results in a spreadsheet. When an archive is
// configured, a timestamped copy is kept server-side as well.
func ExportResultsHandler(store exam.Store, archive storage.Archive) http.HandlerFunc {
	scale := grading.DefaultMarkScale()
	return func(w http.ResponseWriter, r *http.Request) {
		testID := chi.URLParam(r, "testID")
		t, err := store.GetTest(r.Context(), testID)
		if err != nil {
			writeError(w, err)
			return
		}
		caller := auth.IdentityFromContext(r.Context())
		if t.CreatorID != caller.UserID && caller.Role != "admin" {
			writeError(w, exam.ErrNotOwner)
			return
		}
		attempts, err := store.ListAttempts(r.Context(), exam.AttemptListOpts{TestID: testID})
		if err != nil {
			writeError(w, err)
			return
		}

		f := excelize.NewFile()
		defer func() {
			if err := f.Close(); err != nil {
				log.Printf("close workbook: %v", err)
			}
		}()
		const sheet = "Results"
		f.SetSheetName(f.GetSheetName(0), sheet)
		_ = f.SetSheetRow(sheet, "A1", &[]any{"Student", "Class", "Status", "Percentage", "Mark", "Started", "Submitted"})
		for i, a := range attempts {
			student, class := a.UserID, ""
			if u, err := store.GetUser(r.Context(), a.UserID); err == nil {
				student = u.Username
				class = fmt.Sprintf("%d%s", u.Class.Number, u.Class.Letter)
			}
			row := []any{student, class, a.Status, "", "", a.StartedAt.Format("2006-01-02 15:04"), ""}
			if a.Percentage != nil {
				row[3] = *a.Percentage
				row[4] = scale.Mark(*a.Percentage)
			}
			if a.SubmittedAt != nil {
				row[6] = a.SubmittedAt.Format("2006-01-02 15:04")
			}
			cell, _ := excelize.CoordinatesToCellName(1, i+2)
			_ = f.SetSheetRow(sheet, cell, &row)
		}

		buf, err := f.WriteToBuffer()
		if err != nil {
			log.Printf("build workbook: %v", err)
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal"})
			return
		}
		if archive != nil {
			key := fmt.Sprintf("exports/%s-%d.xlsx", testID, time.Now().Unix())
			if err := archive.Save(key, bytes.NewReader(buf.Bytes())); err != nil {
				log.Printf("archive export %s: %v", key, err)
			}
		}

		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", t.Title+"-results.xlsx"))
		if _, err := w.Write(buf.Bytes()); err != nil {
			log.Printf("write workbook: %v", err)
		}
	}
}
