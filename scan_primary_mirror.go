package main

import (
	"strings"
	"time"

	set "github.com/deckarep/golang-set/v2"

	"github.com/mirrormanager/scan-primary-mirror/aggregate"
	"github.com/mirrormanager/scan-primary-mirror/bytesutil"
	"github.com/mirrormanager/scan-primary-mirror/catalog"
	"github.com/mirrormanager/scan-primary-mirror/cleanup"
	"github.com/mirrormanager/scan-primary-mirror/config"
	"github.com/mirrormanager/scan-primary-mirror/discover"
	"github.com/mirrormanager/scan-primary-mirror/entity"
	"github.com/mirrormanager/scan-primary-mirror/errs"
	"github.com/mirrormanager/scan-primary-mirror/filedetail"
	"github.com/mirrormanager/scan-primary-mirror/fmte"
	"github.com/mirrormanager/scan-primary-mirror/logx"
	"github.com/mirrormanager/scan-primary-mirror/scan"
)

// scanPrimaryMirror runs one full scan of one category: scan source,
// aggregation, catalog synchronization, repository discovery, file detail
// recording, aging, and the optional directory cleanup.
func scanPrimaryMirror() int {
	settings, err := config.Load(flags.getConfigPath())
	if err != nil {
		fmte.PrintfErr("Configuration file parsing failed: %v\n", err)
		return exitCodeFailure
	}

	store, err := catalog.Open(settings.Database.URL)
	if err != nil {
		fmte.PrintfErr("Connection to the database failed: %v\n", err)
		return exitCodeFailure
	}
	defer store.Close()

	categories, err := store.Categories()
	if err != nil {
		fmte.PrintfErr("Reading categories from the database failed: %v\n", err)
		return exitCodeFailure
	}

	if flags.isListCategories() {
		listCategories(categories)
		return exitCodeSuccess
	}

	name := flags.getCategory()
	if name == "" {
		fmte.PrintfErr("Please specify a category using '--category'\n\n")
		listCategories(categories)
		return exitCodeFailure
	}

	var category entity.Category
	for _, c := range categories {
		if c.Name == name {
			category = c
		}
	}
	if category.ID == 0 {
		fmte.PrintfErr("Category %s not found. Please use one of the following:\n\n", name)
		listCategories(categories)
		return exitCodeFailure
	}

	cfgCategory, ok := settings.CategoryByName(name)
	if !ok {
		fmte.PrintfErr("Category '%s' not found in configuration file\n", name)
		return exitCodeFailure
	}

	topdir := normalizeTopdir(category.Topdir)

	src, err := newScanSource(settings, cfgCategory, topdir)
	if err != nil {
		fmte.PrintfErr("%v\n", err)
		return exitCodeFailure
	}
	defer src.Close()

	start := time.Now()
	records, err := src.Scan(cfgCategory.URL)
	if err != nil {
		fmte.PrintfErr("Scanning %s failed with %v\n", cfgCategory.URL, err)
		return exitCodeFailure
	}
	var scannedBytes int64
	for _, r := range records {
		if !r.IsDirectory {
			scannedBytes += r.Size
		}
	}
	fmte.Printf("Scanned %d entries (%s) in category %s in %.1fs\n",
		len(records), bytesutil.BinaryFormat(scannedBytes), category.Name, time.Since(start).Seconds())

	agg := aggregate.Build(records, topdir, settings.CombinedExcludes(cfgCategory))

	if err := catalog.NewSynchronizer(store).Sync(category.ID, topdir, agg); err != nil {
		fmte.PrintfErr("Syncing changes to database failed: %v\n", err)
		return exitCodeFailure
	}

	arches, err := store.Arches()
	if err != nil {
		fmte.PrintfErr("Reading architectures from the database failed: %v\n", err)
		return exitCodeFailure
	}
	versions, err := store.Versions(category.ProductID)
	if err != nil {
		fmte.PrintfErr("Reading versions from the database failed: %v\n", err)
		return exitCodeFailure
	}
	repos, err := store.Repositories()
	if err != nil {
		fmte.PrintfErr("Reading repositories from the database failed: %v\n", err)
		return exitCodeFailure
	}
	fds, err := store.AllFileDetails()
	if err != nil {
		fmte.PrintfErr("Reading file details from the database failed: %v\n", err)
		return exitCodeFailure
	}

	fetcher, err := newFetcher(cfgCategory, topdir)
	if err != nil {
		fmte.PrintfErr("%v\n", err)
		return exitCodeFailure
	}

	findCtx := &discover.FindContext{
		Store:    store,
		Category: category,
		Topdir:   topdir,
		Rules: discover.NewRules(arches, versions,
			settings.ToEntityMappings(), settings.ToEntityAliases(),
			settings.TestPaths, settings.DoNotDisplayPaths,
			settings.SkipRepositoryPaths, settings.SkipPathsForVersion),
		Aggregate:    agg,
		Recorder:     filedetail.NewRecorder(fetcher, topdir),
		Repositories: repos,
		FileDetails:  fds,
	}
	if err := discover.FindRepositories(findCtx); err != nil {
		fmte.PrintfErr("Creating repositories in database failed: %v\n", err)
		return exitCodeFailure
	}

	dirs, err := store.Directories(category.ID)
	if err != nil {
		fmte.PrintfErr("Reading directories from the database failed: %v\n", err)
		return exitCodeFailure
	}
	tracked := set.NewThreadUnsafeSetWithSize[int64](len(dirs))
	for _, d := range dirs {
		tracked.Add(d.ID)
	}
	allDetails, err := store.AllFileDetails()
	if err != nil {
		fmte.PrintfErr("Reading file details from the database failed: %v\n", err)
		return exitCodeFailure
	}
	ager := filedetail.NewAger(settings.MaxStaleDays, settings.MaxPropagationDays)
	stale := ager.IDsToDelete(allDetails, tracked, time.Now().Unix())
	if err := store.DeleteFileDetails(stale); err != nil {
		fmte.PrintfErr("File detail aging failed: %v\n", err)
		return exitCodeFailure
	}
	if len(stale) > 0 {
		fmte.Printf("Aged out %d file detail entries\n", len(stale))
	}

	if flags.isDeleteDirectories() {
		present := set.NewThreadUnsafeSetWithSize[string](len(agg))
		for k := range agg {
			present.Add(catalog.AbsoluteName(topdir, k))
		}
		deleted, err := cleanup.Run(store, category.ID, present)
		if err != nil {
			fmte.PrintfErr("Removing non-existing directories failed: %v\n", err)
			return exitCodeFailure
		}
		if len(deleted) > 0 {
			fmte.Printf("Removed %d directories that no longer exist on the file system\n", len(deleted))
		}
	}

	if flags.isDebug() {
		fmte.Printf("Database steps: %d\n", logx.Steps())
	}
	return exitCodeSuccess
}

func listCategories(categories []entity.Category) {
	fmte.Printf("%-30s %s\n", "Category Name", "Category top directory")
	for _, c := range categories {
		fmte.Printf("%-30s %s\n", c.Name, c.Topdir)
	}
}

// normalizeTopdir guarantees a non-empty topdir carries its trailing
// slash, so topdir+relpath concatenation forms clean absolute names.
func normalizeTopdir(topdir string) string {
	if topdir == "" || strings.HasSuffix(topdir, "/") {
		return topdir
	}
	return topdir + "/"
}

func newScanSource(settings *config.Settings, c config.Category, topdir string) (scan.Source, error) {
	switch c.Type {
	case "rsync":
		common, categoryOpts := config.RsyncOptions(settings, c)
		return scan.NewRsyncSource(common, categoryOpts), nil
	case "directory":
		return scan.NewDirectorySource(topdir, flags.isSkipFullFileTimeList()), nil
	case "ssh":
		return scan.NewSSHSource(c.SSHKey), nil
	default:
		return nil, errs.Wrap(errs.ErrConfiguration,
			"cannot handle type '%s' of category '%s'", c.Type, c.Name)
	}
}

// newFetcher picks the file detail fetch strategy for the category's
// backend: HTTP below checksum_base for rsync and ssh scans, local reads
// below the url's pre-topdir prefix for directory scans.
func newFetcher(c config.Category, topdir string) (filedetail.Fetcher, error) {
	switch c.Type {
	case "rsync", "ssh":
		if c.ChecksumBase == "" {
			return nil, errs.Wrap(errs.ErrConfiguration,
				"for backend '%s' 'checksum_base' needs to be set", c.Type)
		}
		return filedetail.NewHTTPFetcher(c.ChecksumBase), nil
	case "directory":
		prefix := c.URL
		if topdir != "" {
			if i := strings.Index(c.URL, topdir); i >= 0 {
				prefix = c.URL[:i]
			}
		}
		return filedetail.NewLocalFetcher(prefix), nil
	default:
		return nil, errs.Wrap(errs.ErrConfiguration, "cannot handle backend type '%s'", c.Type)
	}
}
