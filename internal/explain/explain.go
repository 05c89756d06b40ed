// Package explain provides human-readable explanations for arf commands.
// When --explain is passed, the command prints what it is about to do and
// which arf concepts are involved before doing it.
package explain

import (
	"fmt"
	"io"
)

// Context holds information about an operation to explain
type Context struct {
	Command     string
	Nouns       []Noun
	Description string
	Steps       []string
	Tips        []string
}

// Noun represents an arf concept being used
type Noun struct {
	Name        string
	Description string
	WhyUsed     string
}

// Print writes a formatted explanation to the given writer
func (c *Context) Print(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "╭─ Explain: %s\n", c.Command)
	fmt.Fprintln(w, "│")

	if c.Description != "" {
		fmt.Fprintf(w, "│  %s\n", c.Description)
		fmt.Fprintln(w, "│")
	}

	if len(c.Nouns) > 0 {
		fmt.Fprintln(w, "│  Concepts used:")
		for _, n := range c.Nouns {
			fmt.Fprintf(w, "│     • %s: %s\n", n.Name, n.Description)
			if n.WhyUsed != "" {
				fmt.Fprintf(w, "│       → %s\n", n.WhyUsed)
			}
		}
		fmt.Fprintln(w, "│")
	}

	if len(c.Steps) > 0 {
		fmt.Fprintln(w, "│  What this command does:")
		for i, step := range c.Steps {
			fmt.Fprintf(w, "│     %d. %s\n", i+1, step)
		}
		fmt.Fprintln(w, "│")
	}

	if len(c.Tips) > 0 {
		fmt.Fprintln(w, "│  Tips:")
		for _, tip := range c.Tips {
			fmt.Fprintf(w, "│     %s\n", tip)
		}
		fmt.Fprintln(w, "│")
	}

	fmt.Fprintln(w, "╰────────────────────────────────────────")
	fmt.Fprintln(w)
}

// ExplainInit returns explanation context for the init command
func ExplainInit(branch, mountDir string) *Context {
	return &Context{
		Command:     "arf init",
		Description: "Sets up storage for reasoning records next to your git history.",
		Nouns: []Noun{
			{
				Name:        "ARF branch",
				Description: "An orphan branch that holds only reasoning records",
				WhyUsed:     fmt.Sprintf("Created as '%s' so records never touch your code history", branch),
			},
			{
				Name:        "Mount",
				Description: "A linked worktree where the branch is checked out",
				WhyUsed:     fmt.Sprintf("Mounted at %s and excluded from the main worktree", mountDir),
			},
		},
		Steps: []string{
			fmt.Sprintf("Check whether branch '%s' already exists", branch),
			fmt.Sprintf("Add an orphan worktree for '%s' at %s", branch, mountDir),
			"Create the records/ and specs/ directories",
			"Commit a README on the new branch",
		},
		Tips: []string{
			"Run 'arf record --what ... --why ...' after your next commit",
			"Use 'arf sync --push' to share records with collaborators",
		},
	}
}

// ExplainRecord returns explanation context for the record command
func ExplainRecord(commit, dir, agent string) *Context {
	return &Context{
		Command:     "arf record",
		Description: "Writes a reasoning record for a commit.",
		Nouns: []Noun{
			{
				Name:        "Record",
				Description: "What was done, why, and optionally how, a backup plan and the outcome",
				WhyUsed:     fmt.Sprintf("Written by agent '%s'", agent),
			},
			{
				Name:        "Record directory",
				Description: "A directory named after a prefix of the commit sha",
				WhyUsed:     fmt.Sprintf("Commit %s maps to %s", commit, dir),
			},
		},
		Steps: []string{
			"Validate the record (what and why are required)",
			"Resolve the commit (HEAD unless --commit is given)",
			"Write the record to a temp file and publish it under a unique name",
			"Commit the new file on the ARF branch",
		},
		Tips: []string{
			"Records are immutable; use --supersedes <id> to correct one",
			"Use 'arf log' to see recent records",
		},
	}
}

// ExplainGraph returns explanation context for the graph command
func ExplainGraph(limit int, initialized bool) *Context {
	ctx := &Context{
		Command:     "arf graph",
		Description: "Shows commit history with reasoning nested under each commit.",
		Nouns: []Noun{
			{
				Name:        "Association",
				Description: "A record directory belongs to every commit whose sha starts with its name",
				WhyUsed:     fmt.Sprintf("Applied to the latest %d commits", limit),
			},
		},
		Steps: []string{
			"Walk git history newest first",
			"Scan record directories and match them to commits by prefix",
			"Print each commit with its records ordered by time",
		},
	}
	if !initialized {
		ctx.Tips = []string{"Storage is not initialized yet; run 'arf init' to start recording"}
	} else {
		ctx.Tips = []string{"Use 'arf orphans' to list records whose commits were rewritten"}
	}
	return ctx
}

// ExplainDiff returns explanation context for the diff command
func ExplainDiff(ref string, records int, full bool) *Context {
	mode := "a per-file summary"
	if full {
		mode = "the full patch"
	}
	return &Context{
		Command:     "arf diff",
		Description: "Shows why a commit was made, then what it changed.",
		Nouns: []Noun{
			{
				Name:        "Record",
				Description: "Reasoning attached to the commit",
				WhyUsed:     fmt.Sprintf("%d record(s) found for %s", records, ref),
			},
		},
		Steps: []string{
			"Resolve " + ref + " to a commit",
			"Print every record attached to it",
			"Print " + mode + " of the commit's changes",
		},
		Tips: []string{
			"Add --full for the complete patch",
		},
	}
}
