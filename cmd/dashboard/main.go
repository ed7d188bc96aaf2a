//go:build dashboard

// Command dashboard is a terminal live view of recent saga activity,
// polling the sagas table directly rather than going through the API
// so it keeps working even if the HTTP server is down.
package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rivo/tview"

	"saga-orchestrator/internal/config"
)

type sagaRow struct {
	id        string
	state     string
	cursor    int
	createdAt time.Time
}

func fetchRecent(ctx context.Context, pool *pgxpool.Pool) ([]sagaRow, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, state, cursor, created_at FROM sagas
		ORDER BY created_at DESC LIMIT 25
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sagaRow
	for rows.Next() {
		var r sagaRow
		if err := rows.Scan(&r.id, &r.state, &r.cursor, &r.createdAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func main() {
	cfg := config.Load()
	pool, err := pgxpool.New(context.Background(), cfg.Database.ConnectionString())
	if err != nil {
		panic(err)
	}
	defer pool.Close()

	app := tview.NewApplication()
	table := tview.NewTable().SetBorders(true)

	update := func() {
		rows, err := fetchRecent(context.Background(), pool)
		if err != nil {
			return
		}
		app.QueueUpdateDraw(func() {
			table.Clear()
			headers := []string{"Saga ID", "State", "Cursor", "Created"}
			for i, h := range headers {
				table.SetCell(0, i, tview.NewTableCell(h).SetSelectable(false))
			}
			for i, r := range rows {
				table.SetCell(i+1, 0, tview.NewTableCell(r.id))
				table.SetCell(i+1, 1, tview.NewTableCell(r.state))
				table.SetCell(i+1, 2, tview.NewTableCell(fmt.Sprintf("%d", r.cursor)))
				table.SetCell(i+1, 3, tview.NewTableCell(r.createdAt.Format(time.RFC3339)))
			}
		})
	}

	go func() {
		for {
			update()
			time.Sleep(time.Second)
		}
	}()

	if err := app.SetRoot(table, true).Run(); err != nil {
		panic(err)
	}
}
