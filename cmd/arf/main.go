// Package main provides the arf CLI.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ducks/arf/internal/arferr"
	"github.com/ducks/arf/internal/associate"
	"github.com/ducks/arf/internal/browse"
	"github.com/ducks/arf/internal/cache"
	"github.com/ducks/arf/internal/config"
	"github.com/ducks/arf/internal/explain"
	"github.com/ducks/arf/internal/gitio"
	"github.com/ducks/arf/internal/logging"
	"github.com/ducks/arf/internal/record"
	"github.com/ducks/arf/internal/render"
	"github.com/ducks/arf/internal/specs"
	"github.com/ducks/arf/internal/store"
	"github.com/ducks/arf/internal/worktree"
)

// Version is the current arf CLI version
var Version = "0.2.0"

var rootCmd = &cobra.Command{
	Use:     "arf",
	Short:   "ARF - reasoning records stored alongside git commits",
	Long:    `arf records what an agent did, why, and how, next to the commit it produced. Records live on an orphan branch checked out at .arf/ and are joined to history at read time.`,
	Version: Version,

	SilenceUsage:  true,
	SilenceErrors: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verboseFlag)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		// stderr sync fails on some terminals
		_ = logger.Sync()
	},
}

// Command groups for organized help output
const (
	groupStart   = "start"
	groupHistory = "history"
	groupStorage = "storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the ARF branch and mount it at .arf/",
	Args:  cobra.NoArgs,
	RunE:  runInit,
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record reasoning for a commit",
	Long: `Record reasoning for a commit (HEAD by default).

Examples:
  arf record --what "Add login form" --why "Users need auth"
  arf record --what "Retry uploads" --why "Flaky network" --outcome "partial: 2 of 3 paths"
  arf record --what "Fix typo" --why "Docs" --commit abc1234 --context ticket=ARF-1`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "List reasoning records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLog,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Show commit history with reasoning nested under each commit",
	Args:  cobra.NoArgs,
	RunE:  runGraph,
}

var diffCmd = &cobra.Command{
	Use:   "diff [ref]",
	Short: "Show a commit's reasoning next to its changes",
	Long: `Show a commit's reasoning next to its changes.

The ref defaults to HEAD and may be a branch, a tag, HEAD~N or a sha prefix.
Without --full only the per-file summary is shown.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDiff,
}

var orphansCmd = &cobra.Command{
	Use:   "orphans",
	Short: "List record directories that match no commit",
	Long: `List record directories whose prefix matches no commit in range.

This happens after history is rewritten (rebase, amend): the records are kept
but their prefix no longer matches any commit. With --limit only the newest N
commits count as the range.`,
	Args: cobra.NoArgs,
	RunE: runOrphans,
}

var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "Task specification commands",
}

var specListCmd = &cobra.Command{
	Use:   "list",
	Short: "List task specs stored on the ARF branch",
	Args:  cobra.NoArgs,
	RunE:  runSpecList,
}

var specShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a task spec",
	Args:  cobra.ExactArgs(1),
	RunE:  runSpecShow,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull and push the ARF branch against origin",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the record parse cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many parsed records are cached",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached record",
	Long: `Drop every cached record. Records are re-parsed from storage on the
next read, so clearing never loses data.`,
	Args: cobra.NoArgs,
	RunE: runCacheClear,
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse history and reasoning interactively",
	Args:  cobra.NoArgs,
	RunE:  runBrowse,
}

// Global flags
var (
	verboseFlag bool
	repoFlag    string

	logger = zap.NewNop()
)

// Command flags
var (
	initExplain bool

	recordWhat       string
	recordWhy        string
	recordHow        string
	recordBackup     string
	recordOutcome    string
	recordContext    []string
	recordCommit     string
	recordAgent      string
	recordSupersedes string
	recordExplain    bool

	logLimit  int
	logCommit string
	logAgent  string
	logJSON   bool

	graphLimit   int
	graphExplain bool

	diffFull    bool
	diffExplain bool

	orphansLimit int

	syncPush bool
	syncPull bool

	browseLimit int
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging on stderr")
	rootCmd.PersistentFlags().StringVar(&repoFlag, "repo", ".", "Path inside the Git repository")

	initCmd.Flags().BoolVar(&initExplain, "explain", false, "Show detailed explanation of what this command does")

	recordCmd.Flags().StringVar(&recordWhat, "what", "", "What was done (required)")
	recordCmd.Flags().StringVar(&recordWhy, "why", "", "Why it was done (required)")
	recordCmd.Flags().StringVar(&recordHow, "how", "", "How it was done")
	recordCmd.Flags().StringVar(&recordBackup, "backup", "", "How to roll it back")
	recordCmd.Flags().StringVar(&recordOutcome, "outcome", "", "Outcome: success, failure or partial, optionally followed by ': detail'")
	recordCmd.Flags().StringArrayVar(&recordContext, "context", nil, "Context entry as key=value (repeatable)")
	recordCmd.Flags().StringVar(&recordCommit, "commit", "", "Commit to attach the record to (default: HEAD)")
	recordCmd.Flags().StringVar(&recordAgent, "agent", "", "Agent identifier (default: $ARF_AGENT)")
	recordCmd.Flags().StringVar(&recordSupersedes, "supersedes", "", "Id of a record this one corrects")
	recordCmd.Flags().BoolVar(&recordExplain, "explain", false, "Show detailed explanation of what this command does")

	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 0, "Number of records to show (default: log_limit)")
	logCmd.Flags().StringVar(&logCommit, "commit", "", "Only show records for this commit")
	logCmd.Flags().StringVar(&logAgent, "agent", "", "Only show records whose agent matches this glob")
	logCmd.Flags().BoolVar(&logJSON, "json", false, "Output as JSON")

	graphCmd.Flags().IntVarP(&graphLimit, "limit", "n", 0, "Number of commits to show (default: graph_limit)")
	graphCmd.Flags().BoolVar(&graphExplain, "explain", false, "Show detailed explanation of what this command does")

	diffCmd.Flags().BoolVar(&diffFull, "full", false, "Show the full patch instead of the summary")
	diffCmd.Flags().BoolVar(&diffExplain, "explain", false, "Show detailed explanation of what this command does")

	orphansCmd.Flags().IntVarP(&orphansLimit, "limit", "n", 0, "Only count the newest N commits as the range (default: all)")

	syncCmd.Flags().BoolVar(&syncPush, "push", false, "Only push")
	syncCmd.Flags().BoolVar(&syncPull, "pull", false, "Only pull")

	browseCmd.Flags().IntVarP(&browseLimit, "limit", "n", 0, "Number of commits to load (default: all)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupStart, Title: "Getting Started:"},
		&cobra.Group{ID: groupHistory, Title: "History:"},
		&cobra.Group{ID: groupStorage, Title: "Storage:"},
	)

	initCmd.GroupID = groupStart
	recordCmd.GroupID = groupStart

	logCmd.GroupID = groupHistory
	graphCmd.GroupID = groupHistory
	diffCmd.GroupID = groupHistory
	browseCmd.GroupID = groupHistory

	orphansCmd.GroupID = groupStorage
	specCmd.GroupID = groupStorage
	syncCmd.GroupID = groupStorage
	cacheCmd.GroupID = groupStorage

	specCmd.AddCommand(specListCmd)
	specCmd.AddCommand(specShowCmd)
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(orphansCmd)
	rootCmd.AddCommand(specCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(cacheCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(arferr.ExitCode(err))
	}
}

// session is what every command works with: the source repository, its
// configuration and the optional parse cache.
type session struct {
	repo  *gitio.Repository
	cfg   *config.Config
	cache *cache.Cache
	log   *zap.Logger
}

func openSession() (*session, error) {
	repo, err := gitio.Open(repoFlag)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(repo.Root())
	if err != nil {
		return nil, arferr.Wrap(arferr.KindValidation, config.FileName, "invalid configuration", err)
	}
	repo.SetShortLength(cfg.ShortSHALength)

	s := &session{repo: repo, cfg: cfg, log: logger}
	if cfg.Cache {
		c, err := cache.Open(cfg.CachePath)
		if err != nil {
			// The cache only saves parse time.
			logger.Warn("record cache unavailable", zap.String("path", cfg.CachePath), zap.Error(err))
		} else {
			s.cache = c
		}
	}
	logger.Debug("session opened",
		zap.String("repo", repo.Root()),
		zap.String("storage", cfg.StorageRoot),
		zap.Bool("cache", s.cache != nil))
	return s, nil
}

func (s *session) Close() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.Debug("closing record cache", zap.Error(err))
		}
	}
}

func (s *session) store() *store.Store {
	return store.New(s.cfg.StorageRoot, s.log, s.cache)
}

// index joins the commits in rg with every record in storage. A missing
// storage root is reported through the error so callers can decide whether
// to degrade.
func (s *session) index(rg gitio.Range) (*associate.Index, error) {
	return buildIndex(s.repo, s.store(), rg)
}

func buildIndex(h gitio.History, st *store.Store, rg gitio.Range) (*associate.Index, error) {
	commits, err := h.ListCommits(rg)
	if err != nil {
		return nil, err
	}
	res, err := st.Scan()
	if err != nil {
		return associate.Build(commits, nil), err
	}
	return associate.Build(commits, res.Directories), nil
}

func runInit(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	if initExplain {
		explain.ExplainInit(s.cfg.Branch, s.cfg.MountRel()).Print(out)
	}

	res, err := worktree.Init(cmd.Context(), s.repo.Root(), worktree.Options{
		Branch:      s.cfg.Branch,
		MountDir:    s.cfg.MountDir,
		AuthorName:  s.cfg.AuthorName,
		AuthorEmail: s.cfg.AuthorEmail,
	}, s.log)
	if err != nil {
		return err
	}

	switch {
	case res.Created:
		fmt.Fprintf(out, "Created branch '%s' (%s)\n", res.Branch, s.repo.Short(res.Commit))
	default:
		fmt.Fprintf(out, "Branch '%s' already exists\n", res.Branch)
	}
	if res.Mounted {
		fmt.Fprintf(out, "Mounted at %s/\n", s.cfg.MountRel())
	} else {
		fmt.Fprintf(out, "Already mounted at %s/\n", s.cfg.MountRel())
	}
	fmt.Fprintln(out, "ARF initialized. Record reasoning with 'arf record --what ... --why ...'")
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	rec := record.Record{
		What:       recordWhat,
		Why:        recordWhy,
		How:        recordHow,
		Backup:     recordBackup,
		Agent:      s.cfg.Agent,
		Supersedes: recordSupersedes,
	}
	if recordAgent != "" {
		rec.Agent = recordAgent
	}
	if recordOutcome != "" {
		if rec.Outcome, err = record.ParseOutcome(recordOutcome); err != nil {
			return err
		}
	}
	if len(recordContext) > 0 {
		if rec.Context, err = record.ParseContext(recordContext); err != nil {
			return err
		}
	}
	if err := rec.Validate(); err != nil {
		return err
	}

	ref := recordCommit
	if ref == "" {
		ref = "HEAD"
	}
	sha, err := s.repo.ResolveRef(ref)
	if err != nil {
		return err
	}

	if recordExplain {
		explain.ExplainRecord(s.repo.Short(sha), store.DirName(sha, s.cfg.PrefixLength), rec.Agent).Print(out)
	}

	w := store.NewWriter(s.cfg.StorageRoot, store.WriterOptions{
		PrefixLength: s.cfg.PrefixLength,
		MaxSuffix:    s.cfg.MaxSuffix,
	}, s.log)
	written, err := w.Write(sha, rec)
	if err != nil {
		return err
	}

	if s.cfg.AutoCommit {
		author := worktree.Author{Name: s.cfg.AuthorName, Email: s.cfg.AuthorEmail}
		if _, err := worktree.Commit(cmd.Context(), s.cfg.MountDir, []string{written.Path}, "Record: "+rec.What, author, s.log); err != nil {
			s.log.Warn("record written but not committed to the ARF branch",
				zap.String("path", written.Path), zap.Error(err))
		}
	}

	fmt.Fprintf(out, "✓ Recorded: %s\n", written.Record.What)
	fmt.Fprintf(out, "  Commit: %s\n", s.repo.Short(sha))
	fmt.Fprintf(out, "  File:   %s\n", relPath(s.repo.Root(), written.Path))
	return nil
}

func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return rel
}

func runLog(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ix, err := s.index(gitio.Range{})
	if err != nil {
		return err
	}

	opts := render.LogOptions{Limit: s.cfg.LogLimit, AgentGlob: logAgent}
	if cmd.Flags().Changed("limit") {
		opts.Limit = logLimit
	}
	if logCommit != "" {
		if opts.Commit, err = s.repo.ResolveRef(logCommit); err != nil {
			return err
		}
	}

	entries, err := render.LogEntries(ix, opts)
	if err != nil {
		return err
	}
	format := render.FormatText
	if logJSON {
		format = render.FormatJSON
	}
	return render.WriteLog(cmd.OutOrStdout(), entries, format)
}

func runGraph(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	limit := s.cfg.GraphLimit
	if cmd.Flags().Changed("limit") {
		limit = graphLimit
	}

	// Orphans are judged against full history, the limit only trims output.
	ix, err := s.index(gitio.Range{})
	uninitialized := errors.Is(err, arferr.ErrStorageUninitialized)
	if err != nil && !uninitialized {
		return err
	}

	if graphExplain {
		explain.ExplainGraph(limit, !uninitialized).Print(out)
	}
	return render.WriteGraph(out, ix, render.GraphOptions{Limit: limit, Uninitialized: uninitialized})
}

func runDiff(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	ref := "HEAD"
	if len(args) == 1 {
		ref = args[0]
	}
	sha, err := s.repo.ResolveRef(ref)
	if err != nil {
		return err
	}
	c, err := s.repo.LookupCommit(sha)
	if err != nil {
		return err
	}

	res, err := s.store().Scan()
	uninitialized := errors.Is(err, arferr.ErrStorageUninitialized)
	if err != nil && !uninitialized {
		return err
	}
	if uninitialized {
		res = &store.ScanResult{}
	}
	ix := associate.Build([]gitio.Commit{c}, res.Directories)
	entries := ix.Records(sha)

	if diffExplain {
		explain.ExplainDiff(ref, len(entries), diffFull).Print(out)
	}

	mode := gitio.ShowStat
	if diffFull {
		mode = gitio.ShowPatch
	}
	changes, err := s.repo.ShowCommit(sha, mode)
	if err != nil {
		return err
	}
	if err := render.WriteDiff(out, c, entries, changes); err != nil {
		return err
	}
	if uninitialized {
		fmt.Fprintln(out, "\n"+render.UninitializedNote)
	}
	return nil
}

func runOrphans(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ix, err := s.index(gitio.Range{Limit: orphansLimit})
	if err != nil {
		return err
	}
	return render.WriteOrphans(cmd.OutOrStdout(), ix)
}

func runSpecList(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	names, err := specs.List(s.cfg.SpecsDir)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Fprintln(out, "No specs found.")
		return nil
	}
	fmt.Fprintf(out, "Specs (%d):\n", len(names))
	for _, n := range names {
		fmt.Fprintf(out, "  %s\n", n)
	}
	return nil
}

func runSpecShow(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	content, err := specs.Show(s.cfg.SpecsDir, args[0])
	if err != nil {
		return err
	}
	_, err = io.WriteString(cmd.OutOrStdout(), content)
	return err
}

func runSync(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	steps, err := worktree.Sync(cmd.Context(), s.cfg.MountDir, s.cfg.Branch, syncPull, syncPush)
	if err != nil {
		return err
	}
	for _, st := range steps {
		if st.OK {
			fmt.Fprintf(out, "✓ %s origin/%s\n", st.Op, s.cfg.Branch)
			continue
		}
		fmt.Fprintf(out, "✗ %s origin/%s: %s\n", st.Op, s.cfg.Branch, st.Message)
	}
	return nil
}

// openCache returns the session's cache, or nil when caching is disabled.
func (s *session) openCache() (*cache.Cache, error) {
	if !s.cfg.Cache {
		return nil, nil
	}
	if s.cache == nil {
		return nil, arferr.New(arferr.KindStorage, s.cfg.CachePath, "record cache unavailable")
	}
	return s.cache, nil
}

func runCacheStats(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	c, err := s.openCache()
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Fprintln(out, "Record cache disabled")
		return nil
	}
	stats, err := c.Stats()
	if err != nil {
		return arferr.Wrap(arferr.KindStorage, s.cfg.CachePath, "reading cache stats", err)
	}
	fmt.Fprintf(out, "Cache: %s\n", s.cfg.CachePath)
	fmt.Fprintf(out, "Cached records: %d\n", stats.TotalEntries)
	return nil
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	c, err := s.openCache()
	if err != nil {
		return err
	}
	if c == nil {
		fmt.Fprintln(out, "Record cache disabled")
		return nil
	}
	if err := c.Clear(); err != nil {
		return arferr.Wrap(arferr.KindStorage, s.cfg.CachePath, "clearing cache", err)
	}
	s.log.Debug("record cache cleared", zap.String("path", s.cfg.CachePath))
	fmt.Fprintln(out, "✓ Cache cleared")
	return nil
}

func runBrowse(cmd *cobra.Command, args []string) error {
	if !logging.IsTerminal(os.Stdin) || !logging.IsTerminal(os.Stdout) {
		return arferr.New(arferr.KindValidation, "browse", "browse needs an interactive terminal; use 'arf graph' instead")
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ix, err := s.index(gitio.Range{Limit: browseLimit})
	if err != nil && !errors.Is(err, arferr.ErrStorageUninitialized) {
		return err
	}
	return browse.Run(ix, s.repo)
}
