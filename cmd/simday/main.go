package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"text/tabwriter"
	"time"

	"timeclock.org/internal/attendance"
)

// simday replays a synthetic work week against the in-memory store and
// prints the resulting accounting, rankings, and alerts. Useful for eyeballing
// score behavior without a database.
func main() {
	log.SetFlags(0)
	var (
		employees = flag.Int("employees", 5, "Number of simulated employees")
		days      = flag.Int("days", 5, "Number of simulated work days")
		seed      = flag.Int64("seed", time.Now().UnixNano(), "Random seed")
	)
	flag.Parse()

	rnd := rand.New(rand.NewSource(*seed))
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC) // a Monday
	clock := &fakeClock{t: now}
	svc := attendance.NewInMemory(attendance.WithClock(clock.Now))
	ctx := context.Background()

	const orgID = "org-sim"
	userIDs := make([]string, *employees)
	for i := range userIDs {
		userIDs[i] = fmt.Sprintf("user-%02d", i+1)
	}

	for day := 0; day < *days; day++ {
		base := now.AddDate(0, 0, day)
		for _, userID := range userIDs {
			// Some employees skip days; that is what LOW_ACTIVITY is for.
			if rnd.Float64() < 0.15 {
				continue
			}
			start := base.Add(9*time.Hour + time.Duration(rnd.Intn(45))*time.Minute)
			breakLen := time.Duration(30+rnd.Intn(60)) * time.Minute
			workLen := time.Duration(6+rnd.Intn(3)) * time.Hour

			clock.Set(start)
			if _, err := svc.StartSession(ctx, userID, orgID); err != nil {
				log.Fatalf("%s start: %v", userID, err)
			}

			clock.Set(start.Add(workLen / 2))
			if _, err := svc.StartBreak(ctx, userID, orgID); err != nil {
				log.Fatalf("%s break start: %v", userID, err)
			}
			clock.Set(start.Add(workLen/2 + breakLen))
			if res, err := svc.EndBreak(ctx, userID, orgID); err != nil {
				log.Fatalf("%s break end: %v", userID, err)
			} else if res.LimitExceeded {
				log.Printf("%s exceeded the break budget on day %d", userID, day+1)
			}

			clock.Set(start.Add(workLen + breakLen))
			if _, err := svc.StopSession(ctx, userID, orgID); err != nil {
				log.Fatalf("%s stop: %v", userID, err)
			}
		}
	}

	end := now.AddDate(0, 0, *days)
	clock.Set(end)

	reports := make([]attendance.WeeklyReport, 0, len(userIDs))
	for _, userID := range userIDs {
		sessions, err := svc.SessionsInRange(ctx, orgID, userID, now, end)
		if err != nil {
			log.Fatalf("%s sessions: %v", userID, err)
		}
		tasks := attendance.TaskSummary{
			Done:  rnd.Intn(8),
			Total: 8,
		}
		report := attendance.BuildWeeklyReport(userID, sessions, tasks, end)
		report.Username = userID
		reports = append(reports, report)
	}

	ranked := attendance.Rank(reports)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tUSER\tNET\tBREAK\tHOURS\tBREAK%\tTASKS\tSCORE\tALERTS")
	for i, rep := range ranked {
		alerts := attendance.Alerts(rep)
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.1f\t%.0f%%\t%d/%d\t%.1f\t%v\n",
			i+1,
			rep.Username,
			(time.Duration(rep.NetSeconds) * time.Second).String(),
			(time.Duration(rep.BreakSeconds) * time.Second).String(),
			rep.WeeklyHours,
			rep.BreakRatio*100,
			rep.TasksDone, rep.TasksTotal,
			rep.Score,
			alerts,
		)
	}
	_ = w.Flush()
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time  { return c.t }
func (c *fakeClock) Set(t time.Time) { c.t = t }
