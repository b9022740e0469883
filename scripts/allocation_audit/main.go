package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/noah-isme/section-allocator/internal/engine"
	"github.com/noah-isme/section-allocator/internal/models"
	"github.com/noah-isme/section-allocator/internal/repository"
	"github.com/noah-isme/section-allocator/pkg/config"
	"github.com/noah-isme/section-allocator/pkg/database"
)

type finding struct {
	Kind      string `json:"kind"`
	SectionID string `json:"sectionId,omitempty"`
	StudentID string `json:"studentId,omitempty"`
	Detail    string `json:"detail"`
}

type report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	Students    int       `json:"students"`
	Assigned    int       `json:"assigned"`
	Findings    []finding `json:"findings"`
}

func main() {
	var (
		timeout  time.Duration
		asJSON   bool
		strict   bool
		semester string
		runID    string
	)

	flag.DurationVar(&timeout, "timeout", 30*time.Second, "Snapshot read timeout")
	flag.BoolVar(&asJSON, "json", false, "Print the report as JSON")
	flag.BoolVar(&strict, "strict", true, "Exit non-zero when any finding is reported")
	flag.StringVar(&semester, "semester", "", "Semester label printed in the report header")
	flag.StringVar(&runID, "run", "", "Audit the rows written by one run instead of the current roster")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	snap, err := repository.NewSnapshotRepository(db).Load(ctx, models.SnapshotScope{})
	if err != nil {
		log.Fatalf("failed to load snapshot: %v", err)
	}

	assignments := repository.NewAssignmentRepository(db)
	var rows []models.Assignment
	if runID != "" {
		rows, err = assignments.ListByRun(ctx, runID)
	} else {
		rows, err = assignments.ListCurrent(ctx)
	}
	if err != nil {
		log.Fatalf("failed to load assignments: %v", err)
	}

	evaluator := engine.NewEvaluator(engine.EligibilityConfig{
		PriorityThreshold: cfg.Scheduler.PriorityThreshold,
		PriorityWeight:    cfg.Scheduler.PriorityWeight,
	})
	rep := audit(snap, rows, evaluator)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			log.Fatalf("failed to encode report: %v", err)
		}
	} else {
		printReport(rep, semester)
	}

	if strict && len(rep.Findings) > 0 {
		os.Exit(1)
	}
}

// audit checks assignment rows against hard constraints via engine.Verify plus the eligibility gate.
func audit(snap *models.Snapshot, rows []models.Assignment, evaluator *engine.Evaluator) report {
	current := make(map[string]*string, len(rows))
	for _, a := range rows {
		if a.IsAssigned() {
			id := *a.SectionID
			current[a.StudentID] = &id
		} else {
			current[a.StudentID] = nil
		}
	}

	rep := report{GeneratedAt: time.Now().UTC(), Students: len(snap.Students), Findings: []finding{}}
	for _, v := range engine.Verify(current, snap.Sections, snap.FacultyByID(), nil) {
		rep.Findings = append(rep.Findings, finding{Kind: v.Kind, SectionID: v.SectionID, StudentID: v.StudentID, Detail: v.Detail})
	}

	verdicts := evaluator.EvaluateAll(snap.Students)
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, studentID := range ids {
		sectionID := current[studentID]
		if sectionID == nil {
			continue
		}
		rep.Assigned++
		verdict, known := verdicts[studentID]
		switch {
		case !known:
			rep.Findings = append(rep.Findings, finding{Kind: "unknown_student", SectionID: *sectionID, StudentID: studentID, Detail: "assigned student not in catalog"})
		case !verdict.Eligible:
			rep.Findings = append(rep.Findings, finding{Kind: "ineligible_assigned", SectionID: *sectionID, StudentID: studentID, Detail: "payment or evaluation outstanding"})
		}
	}
	return rep
}

func printReport(rep report, semester string) {
	title := "Allocation Audit Report"
	if semester != "" {
		title += " (" + semester + ")"
	}
	fmt.Println(title)
	fmt.Println("=======================")
	fmt.Printf("Students: %d | Assigned: %d | Findings: %d\n", rep.Students, rep.Assigned, len(rep.Findings))
	for _, f := range rep.Findings {
		fmt.Printf("[%s] section=%s student=%s\n", f.Kind, f.SectionID, f.StudentID)
		fmt.Printf("  %s\n", f.Detail)
	}
	if len(rep.Findings) == 0 {
		fmt.Println("OK: roster satisfies capacity, faculty and eligibility constraints")
	}
}
