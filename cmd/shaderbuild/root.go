package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gogpu/cgvshader"
	"github.com/gogpu/cgvshader/build"
	"github.com/gogpu/cgvshader/compiler"
)

// Version is filled when building with -ldflags, but not when installing
// via "go install".
var Version string

var rootCmd = &cobra.Command{
	Use:   "shaderbuild",
	Short: "Build-time orchestrator for cgvshader packages.",
	Long: `shaderbuild walks a shader source directory, compiles every module it
finds for every feasible target, and writes the resulting packages into a
mirrored output tree with build-system dependency declarations.`,
	RunE: runBuild,
}

func init() {
	rootCmd.Flags().Bool("version", false, "print version information and exit")
	rootCmd.Flags().StringP("src", "s", "", "shader source directory to walk")
	rootCmd.Flags().StringP("out", "o", "", "output directory for packaged shaders")
	rootCmd.Flags().StringArray("skip", nil, "source-tree-relative sub-directories to skip")
	rootCmd.Flags().StringArray("shader-path", nil, "module search path entries, repeatable")
	rootCmd.Flags().String("depfile", "", "path to write a Makefile-style dependency fragment")
	rootCmd.Flags().Bool("web", false, "target the WebGPU/WASM feasibility list instead of native")
	rootCmd.Flags().Bool("debug", false, "prefer debug-instrumented SPIR-V on native platforms")
	rootCmd.Flags().Bool("verbose", false, "enable debug-level logging")
}

// Execute runs the root command. Called by main.main once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runBuild(cmd *cobra.Command, _ []string) error {
	if v, _ := cmd.Flags().GetBool("version"); v {
		printVersion()
		return nil
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	src, _ := cmd.Flags().GetString("src")
	out, _ := cmd.Flags().GetString("out")
	if src == "" || out == "" {
		return fmt.Errorf("both --src and --out are required")
	}
	skip, _ := cmd.Flags().GetStringArray("skip")
	shaderPath, _ := cmd.Flags().GetStringArray("shader-path")
	depFile, _ := cmd.Flags().GetString("depfile")
	web, _ := cmd.Flags().GetBool("web")
	debugBuild, _ := cmd.Flags().GetBool("debug")

	setup := build.NewSetup()
	for _, p := range shaderPath {
		setup.AddShaderPath(p)
	}

	platform := cgvshader.NativePlatform(debugBuild)
	if web {
		platform = cgvshader.WebPlatform()
	}

	return build.Run(setup, src, out, build.Options{
		Platform:      platform,
		SkipSubDirs:   skip,
		DepFilePath:   depFile,
		CompatOptions: compiler.DefaultCompatOptions(),
	})
}

func printVersion() {
	fmt.Print("shaderbuild ")
	if Version != "" {
		fmt.Printf("%s", Version)
	} else if info, ok := debug.ReadBuildInfo(); ok {
		fmt.Printf("%s", info.Main.Version)
	} else {
		fmt.Print("(unknown version)")
	}
	fmt.Println()
}
