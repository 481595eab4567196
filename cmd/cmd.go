package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"

	"github.com/xhad/docchat/internal/models"
	"github.com/xhad/docchat/pkg/fetcher"
	"github.com/xhad/docchat/pkg/history"
)

type urlList []string

func (u *urlList) String() string     { return strings.Join(*u, ",") }
func (u *urlList) Set(v string) error { *u = append(*u, v); return nil }

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// readFiles loads local documents, reporting progress as it goes.
func readFiles(paths []string) ([]models.Document, error) {
	bar := getProgressBar(len(paths), "Reading documents")
	defer bar.Finish()

	docs := make([]models.Document, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		docs = append(docs, models.Document{Name: filepath.Base(p), Content: data})
		bar.Add(1)
	}
	return docs, nil
}

func fetchURLs(ctx context.Context, f *fetcher.Fetcher, urls []string) ([]models.Document, error) {
	var docs []models.Document
	for _, u := range urls {
		spinner := getSpinner(fmt.Sprintf(" Fetching %s", u))
		fetched, err := f.Fetch(ctx, u)
		spinner.Finish()
		if err != nil {
			return nil, fmt.Errorf("failed to fetch %s: %w", u, err)
		}
		docs = append(docs, fetched...)
	}
	return docs, nil
}

func (a *app) index(ctx context.Context, sessionID string, docs []models.Document) error {
	spinner := getSpinner(" Indexing documents...")
	result, err := a.service.Upload(ctx, sessionID, docs)
	spinner.Finish()
	fmt.Print("\r")
	if err != nil {
		return err
	}
	color.Green("✓ Indexed %d documents into %d chunks\n", result.Documents, result.Chunks)
	return nil
}

func runChat(ctx context.Context, args []string) error {
	fset := flag.NewFlagSet("chat", flag.ExitOnError)
	opts := registerFlags(fset)
	sessionID := fset.String("session", "", "Session id to resume (default: a new random id)")
	follow := fset.Bool("follow-links", false, "Also index PDFs linked from fetched HTML pages")
	var urls urlList
	fset.Var(&urls, "url", "Document URL to fetch and index (repeatable)")
	fset.Parse(args)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if *sessionID == "" {
		*sessionID = uuid.NewString()
	}
	color.Blue("Session %s\n", *sessionID)

	f := fetcher.NewWithConfig(fetcher.FetcherConfig{FollowPDFLinks: *follow})

	docs, err := readFiles(fset.Args())
	if err != nil {
		return err
	}
	fetched, err := fetchURLs(ctx, f, urls)
	if err != nil {
		return err
	}
	docs = append(docs, fetched...)

	if len(docs) > 0 {
		if err := a.index(ctx, *sessionID, docs); err != nil {
			color.Red("Error: %v\n", err)
		}
	}

	color.Cyan("\nChat with your documents (type 'exit' to quit, '/upload <file>', '/url <link>', '/history', '/sessions' or '/session <id>')")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case strings.ToLower(query) == "exit":
			return nil
		case strings.HasPrefix(query, "/upload "):
			docs, err := readFiles(strings.Fields(strings.TrimPrefix(query, "/upload ")))
			if err == nil {
				err = a.index(ctx, *sessionID, docs)
			}
			if err != nil {
				color.Red("Error: %v\n", err)
			}
			continue
		case strings.HasPrefix(query, "/url "):
			docs, err := fetchURLs(ctx, f, strings.Fields(strings.TrimPrefix(query, "/url ")))
			if err == nil {
				err = a.index(ctx, *sessionID, docs)
			}
			if err != nil {
				color.Red("Error: %v\n", err)
			}
			continue
		case query == "/sessions":
			ids := a.service.Registry().IDs()
			if len(ids) == 0 {
				color.Yellow("No indexed sessions\n")
			}
			for _, id := range ids {
				if id == *sessionID {
					color.Green("* %s\n", id)
				} else {
					fmt.Printf("  %s\n", id)
				}
			}
			continue
		case strings.HasPrefix(query, "/session "):
			id, err := history.NormalizeSessionID(strings.TrimPrefix(query, "/session "))
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			*sessionID = id
			color.Blue("Session %s\n", id)
			continue
		case query == "/history":
			turns, err := a.service.History(ctx, *sessionID)
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			for _, turn := range turns {
				userPrompt("You: %s\n", turn.Message)
				assistantPrompt("Assistant: %s\n", turn.Answer)
			}
			continue
		}

		if opts.stream {
			fmt.Print("\n")
			assistantPrompt("Assistant: ")
			_, err := a.service.ChatStream(ctx, *sessionID, query, func(chunk string) error {
				fmt.Print(chunk)
				return nil
			})
			if err != nil {
				color.Red("\nError: %v\n", err)
				continue
			}
			fmt.Print("\n")
		} else {
			responseSpinner := getSpinner(" Generating response...")
			response, err := a.service.Chat(ctx, *sessionID, query)
			responseSpinner.Finish()

			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			assistantPrompt("\nAssistant: %s\n", response)
		}
	}

	return scanner.Err()
}
