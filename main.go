package main

import (
	"fmt"
	"os"
	"runtime/debug"

	flag "github.com/spf13/pflag"

	"github.com/mirrormanager/scan-primary-mirror/fmte"
	"github.com/mirrormanager/scan-primary-mirror/logx"
)

// Constants indicating return codes of this tool, when run from command line
const (
	exitCodeSuccess = iota
	exitCodeFailure
)

const defaultConfigPath = "/etc/mirrormanager/scan-primary-mirror.toml"

var flags struct {
	getConfigPath          func() string
	isDebug                func() bool
	isListCategories       func() bool
	getCategory            func() string
	isDeleteDirectories    func() bool
	isSkipFullFileTimeList func() bool
}

func setupConfigOpt() {
	configPtr := flag.StringP("config", "c", defaultConfigPath, "configuration file")
	flags.getConfigPath = func() string {
		return *configPtr
	}
}

func setupDebugOpt() {
	debugPtr := flag.BoolP("debug", "d", false, "enable debug")
	flags.isDebug = func() bool {
		return *debugPtr
	}
}

func setupListCategoriesOpt() {
	listPtr := flag.Bool("list-categories", false, "list available categories")
	flags.isListCategories = func() bool {
		return *listPtr
	}
}

func setupCategoryOpt() {
	categoryPtr := flag.String("category", "", "only scan category CATEGORY")
	flags.getCategory = func() string {
		return *categoryPtr
	}
}

func setupDeleteDirectoriesOpt() {
	deletePtr := flag.Bool("delete-directories", false,
		"delete directories from the database that no longer exist")
	flags.isDeleteDirectories = func() bool {
		return *deletePtr
	}
}

func setupSkipFullFileTimeListOpt() {
	skipPtr := flag.Bool("skip-fullfiletimelist", false,
		"do not look for a fullfiletimelist-*; actually scan the filesystem")
	flags.isSkipFullFileTimeList = func() bool {
		return *skipPtr
	}
}

func setupUsage() {
	flag.Usage = func() {
		fmte.PrintfErr("Usage: scan-primary-mirror [options]\n\n%s", flag.CommandLine.FlagUsages())
	}
}

func handlePanic() {
	err := recover()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Program exited unexpectedly. "+
			"Please report the below error to the author:\n"+
			"%+v\n", err)
		_, _ = fmt.Fprintln(os.Stderr, string(debug.Stack()))
		os.Exit(exitCodeFailure)
	}
}

func main() {
	defer handlePanic()
	setupConfigOpt()
	setupDebugOpt()
	setupListCategoriesOpt()
	setupCategoryOpt()
	setupDeleteDirectoriesOpt()
	setupSkipFullFileTimeListOpt()
	setupUsage()
	flag.Parse()
	logx.Configure(flags.isDebug())
	os.Exit(scanPrimaryMirror())
}
