package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/foundry/releasestats/internal/chart"
	"github.com/foundry/releasestats/internal/core/models"
)

const defaultServer = "http://localhost:8080"

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "repos":
		cmdRepos(args)
	case "series":
		cmdSeries(args)
	case "chart":
		cmdChart(args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Release stats CLI

Usage:
  release-stats-cli repos [options]
  release-stats-cli series <owner/repo> [options]
  release-stats-cli chart <owner/repo> [options]

Options:
  --server <url>    Server URL (default: http://localhost:8080)
  --output <file>   Output file path (for chart)`)
}

// parseFlags extracts --key value pairs from args.
func parseFlags(args []string) (positional []string, flags map[string]string) {
	flags = make(map[string]string)
	for i := 0; i < len(args); i++ {
		if strings.HasPrefix(args[i], "--") && i+1 < len(args) {
			flags[strings.TrimPrefix(args[i], "--")] = args[i+1]
			i++
		} else {
			positional = append(positional, args[i])
		}
	}
	return
}

func getFlag(flags map[string]string, key, def string) string {
	if v, ok := flags[key]; ok {
		return v
	}
	return def
}

func get(u string) *http.Response {
	resp, err := client.Get(u)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintln(os.Stderr, formatHTTPError(resp))
		resp.Body.Close()
		os.Exit(1)
	}
	return resp
}

func cmdRepos(args []string) {
	_, flags := parseFlags(args)
	server := getFlag(flags, "server", defaultServer)

	resp := get(reposURL(server))
	defer resp.Body.Close()

	var repos []models.RepositorySummary
	if err := json.NewDecoder(resp.Body).Decode(&repos); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding response: %v\n", err)
		os.Exit(1)
	}

	if len(repos) == 0 {
		fmt.Println("No snapshots recorded yet.")
		return
	}

	fmt.Println("Repositories:")
	for _, r := range repos {
		fmt.Printf("  - %s: %d assets, %d points, %d..%d downloads, %s..%s\n",
			r.Name, r.Assets, r.Points, r.MinValue, r.MaxValue,
			r.MinTimestamp.Format(time.RFC3339), r.MaxTimestamp.Format(time.RFC3339))
	}
}

func cmdSeries(args []string) {
	pos, flags := parseFlags(args)
	if len(pos) < 1 {
		fmt.Fprintln(os.Stderr, "usage: release-stats-cli series <owner/repo> [--server URL]")
		os.Exit(1)
	}

	repo := pos[0]
	server := getFlag(flags, "server", defaultServer)
	u, err := seriesURL(server, repo)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	resp := get(u)
	defer resp.Body.Close()

	var series struct {
		Name   string               `json:"name"`
		Assets []models.AssetSeries `json:"assets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&series); err != nil {
		fmt.Fprintf(os.Stderr, "error decoding response: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s:\n", series.Name)
	for _, a := range series.Assets {
		if len(a.Points) == 0 {
			continue
		}
		last := a.Points[len(a.Points)-1]
		fmt.Printf("  - %s: %d downloads (%d snapshots, last %s)\n",
			a.Name, last.Value, len(a.Points), last.Timestamp.Format(time.RFC3339))
	}
}

func cmdChart(args []string) {
	pos, flags := parseFlags(args)
	if len(pos) < 1 {
		fmt.Fprintln(os.Stderr, "usage: release-stats-cli chart <owner/repo> [--server URL] [--output FILE]")
		os.Exit(1)
	}

	repo := pos[0]
	server := getFlag(flags, "server", defaultServer)
	name := chart.FileName(repo)
	output := getFlag(flags, "output", name)

	resp := get(chartURL(server, name))
	defer resp.Body.Close()

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output directory: %v\n", err)
		os.Exit(1)
	}

	tmpOutput := output + ".part"
	file, err := os.Create(tmpOutput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating output file: %v\n", err)
		os.Exit(1)
	}
	success := false
	defer func() {
		file.Close()
		if !success {
			_ = os.Remove(tmpOutput)
		}
	}()

	n, err := io.Copy(file, resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error downloading: %v\n", err)
		os.Exit(1)
	}
	if err := file.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing downloaded file: %v\n", err)
		os.Exit(1)
	}
	if err := os.Rename(tmpOutput, output); err != nil {
		fmt.Fprintf(os.Stderr, "error finalizing output file: %v\n", err)
		os.Exit(1)
	}
	success = true

	fmt.Printf("Saved chart of %s -> %s (%s)\n", repo, output, formatBytes(n))
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func reposURL(server string) string {
	return fmt.Sprintf("%s/api/v1/repositories", strings.TrimRight(server, "/"))
}

func seriesURL(server, repo string) (string, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("repository %q is not in owner/repo form", repo)
	}
	return fmt.Sprintf("%s/api/v1/repositories/%s/%s/series",
		strings.TrimRight(server, "/"), url.PathEscape(owner), url.PathEscape(name)), nil
}

func chartURL(server, name string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(server, "/"), url.PathEscape(name))
}

func formatHTTPError(resp *http.Response) string {
	body, _ := io.ReadAll(resp.Body)
	if len(body) == 0 {
		return fmt.Sprintf("error (%d): %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	var payload models.ErrorResponse
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return fmt.Sprintf("error (%d): %s", resp.StatusCode, payload.Message)
	}
	return fmt.Sprintf("error (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
