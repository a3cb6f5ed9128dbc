// Package page computes page counts and navigation actions for paged
// catalog results. It is query-agnostic: callers tag actions with an
// opaque namespace that routes the target page back to the right query.
package page

import "fmt"

const (
	// PageSize is how many catalog entries fit on one browse page.
	PageSize = 7
	// Step is the fast-travel distance of the second navigation row.
	Step = 5
)

// Max returns the number of pages needed for totalCount items. It is
// never below 1, even for an empty result set.
func Max(totalCount, pageSize int) int {
	if totalCount <= 0 {
		return 1
	}
	return (totalCount + pageSize - 1) / pageSize
}

// Action is one navigation affordance: a labelled jump to a target page
// within a namespace.
type Action struct {
	Label     string
	Namespace string
	Target    int
}

// Callback is the opaque routing token the transport round-trips back,
// e.g. "b_3" for page 3 of a book search.
func (a Action) Callback() string {
	return fmt.Sprintf("%s_%d", a.Namespace, a.Target)
}

// Nav is the navigation block for one page. Row one steps to adjacent
// pages; row two fast-travels by Step and is present only when the jump
// would land somewhere other than the adjacent page.
type Nav struct {
	Prev, Next        *Action
	JumpBack, JumpFwd *Action
}

// Rows returns the non-empty navigation rows in display order.
func (n *Nav) Rows() [][]Action {
	var rows [][]Action
	var first, second []Action
	if n.JumpBack != nil {
		second = append(second, *n.JumpBack)
	}
	if n.Prev != nil {
		first = append(first, *n.Prev)
	}
	if n.JumpFwd != nil {
		second = append(second, *n.JumpFwd)
	}
	if n.Next != nil {
		first = append(first, *n.Next)
	}
	if len(first) > 0 {
		rows = append(rows, first)
	}
	if len(second) > 0 {
		rows = append(rows, second)
	}
	return rows
}

// Navigate builds the navigation for the given page. It returns nil when
// there is only one page: absence of navigation is a valid terminal
// state, not an empty structure.
func Navigate(current, pageMax int, ns string) *Nav {
	if pageMax == 1 {
		return nil
	}
	nav := &Nav{}
	if current > 1 {
		back := max(1, current-Step)
		if back != current-1 {
			nav.JumpBack = &Action{Label: fmt.Sprintf("<< %d", back), Namespace: ns, Target: back}
		}
		nav.Prev = &Action{Label: "<", Namespace: ns, Target: current - 1}
	}
	if current < pageMax {
		fwd := min(pageMax, current+Step)
		if fwd != current+1 {
			nav.JumpFwd = &Action{Label: fmt.Sprintf(">> %d", fwd), Namespace: ns, Target: fwd}
		}
		nav.Next = &Action{Label: ">", Namespace: ns, Target: current + 1}
	}
	return nav
}
