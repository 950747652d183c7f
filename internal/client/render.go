package client

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/sbilibin2017/romako-counter/internal/models"
)

const timeLayout = "2006/01/02 15:04"

// RankIcon labels a 1-based ranking position.
func RankIcon(rank int) string {
	switch rank {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return strconv.Itoa(rank) + "位"
	}
}

// RenderList writes the list view.
func RenderList(w io.Writer, v *EntryView, loc *time.Location) {
	if msg := v.Err(); msg != "" {
		fmt.Fprintf(w, "%s (retry で再試行)\n", msg)
		return
	}
	entries := v.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, "まだ投稿がありません")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  [カウント: %d]%s\n", e.Text, e.Count, byline(e))
		fmt.Fprintf(w, "    投稿日時: %s%s\n", e.CreatedAt.In(loc).Format(timeLayout), lastUpdated(e, loc))
	}
}

// RenderRanking writes the ranking view.
func RenderRanking(w io.Writer, v *EntryView, loc *time.Location) {
	if msg := v.Err(); msg != "" {
		fmt.Fprintf(w, "%s (retry で再試行)\n", msg)
		return
	}
	entries := v.Entries()
	if len(entries) == 0 {
		fmt.Fprintln(w, "まだ投稿がありません")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(w, "%s %s  [%d回]%s\n", RankIcon(i+1), e.Text, e.Count, byline(e))
		fmt.Fprintf(w, "    最終更新: %s\n", e.UpdatedAt.In(loc).Format(timeLayout))
	}
}

// RenderEntry formats a single broadcast entry as a notification line.
func RenderEntry(e models.Entry) string {
	return fmt.Sprintf("* %s  [カウント: %d]%s", e.Text, e.Count, byline(e))
}

func byline(e models.Entry) string {
	if e.UserName == nil || *e.UserName == "" {
		return ""
	}
	return "  by " + *e.UserName
}

func lastUpdated(e models.Entry, loc *time.Location) string {
	if e.UpdatedAt.Equal(e.CreatedAt) {
		return ""
	}
	return "  最終更新: " + e.UpdatedAt.In(loc).Format(timeLayout)
}
