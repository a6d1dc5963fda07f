// Package main provides a command-line client for the registry.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/formledger/formledger/internal/client"
	"github.com/formledger/formledger/internal/content"
	"github.com/formledger/formledger/internal/platform/config"
)

const usage = `Usage: formctl [flags] <command> [args]

Commands:
  publish <file>              store a form document and register it
  fetch <form-id>             print a form and its document
  deactivate <form-id>        stop a form accepting responses
  respond <form-id> <file>    store an answer document and submit it
  responses <form-id>         list a form's responses with documents
  count                       print the total number of forms
  admin-add <identity>        grant admin membership
  admin-check <identity>      report admin membership
  notifications               print the notification log

Flags:
`

func main() {
	var registryURL string
	var contentDir string
	var contentURL string
	var token string
	var afterSeq uint64
	var limit int

	flag.StringVar(&registryURL, "registry", envOr("FORMLEDGER_REGISTRY_URL", "http://localhost:8080"), "registry base URL")
	flag.StringVar(&contentDir, "content-dir", os.Getenv("FORMLEDGER_CONTENT_DIR"), "directory-backed content store path")
	flag.StringVar(&contentURL, "content-url", os.Getenv("FORMLEDGER_CONTENT_URL"), "remote content store base URL (overrides -content-dir)")
	flag.StringVar(&token, "token", os.Getenv("FORMLEDGER_IDENTITY_TOKEN"), "bearer identity token for mutations")
	flag.Uint64Var(&afterSeq, "after-seq", 0, "list entries after this sequence number")
	flag.IntVar(&limit, "limit", 0, "max entries to list (0 = server default)")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := openContentStore(contentDir, contentURL)
	if err != nil {
		config.Exitf("content store: %v", err)
	}
	c, err := client.New(registryURL, docs, client.WithToken(token))
	if err != nil {
		config.Exitf("client: %v", err)
	}

	if err := run(ctx, c, args, afterSeq, limit); err != nil {
		config.Exitf("%v", err)
	}
}

func run(ctx context.Context, c *client.Client, args []string, afterSeq uint64, limit int) error {
	command, rest := args[0], args[1:]
	switch command {
	case "publish":
		document, err := readFileArg(rest, "publish <file>")
		if err != nil {
			return err
		}
		form, err := c.PublishForm(ctx, document)
		if err != nil {
			return err
		}
		return printJSON(form)

	case "fetch":
		id, err := formIDArg(rest, "fetch <form-id>")
		if err != nil {
			return err
		}
		form, err := c.FetchForm(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(form)

	case "deactivate":
		id, err := formIDArg(rest, "deactivate <form-id>")
		if err != nil {
			return err
		}
		form, err := c.DeactivateForm(ctx, id)
		if err != nil {
			return err
		}
		return printJSON(form)

	case "respond":
		if len(rest) != 2 {
			return fmt.Errorf("usage: respond <form-id> <file>")
		}
		id, err := parseFormID(rest[0])
		if err != nil {
			return err
		}
		answers, err := os.ReadFile(rest[1])
		if err != nil {
			return fmt.Errorf("read answer document: %w", err)
		}
		response, err := c.SubmitResponse(ctx, id, answers)
		if err != nil {
			return err
		}
		return printJSON(response)

	case "responses":
		id, err := formIDArg(rest, "responses <form-id>")
		if err != nil {
			return err
		}
		responses, err := c.FormResponses(ctx, id, afterSeq, limit)
		if err != nil {
			return err
		}
		return printJSON(responses)

	case "count":
		count, err := c.FormCount(ctx)
		if err != nil {
			return err
		}
		fmt.Println(count)
		return nil

	case "admin-add":
		if len(rest) != 1 {
			return fmt.Errorf("usage: admin-add <identity>")
		}
		return c.AddAdministrator(ctx, rest[0])

	case "admin-check":
		if len(rest) != 1 {
			return fmt.Errorf("usage: admin-check <identity>")
		}
		ok, err := c.IsAdministrator(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Println(ok)
		return nil

	case "notifications":
		notes, err := c.Notifications(ctx, afterSeq, limit)
		if err != nil {
			return err
		}
		return printJSON(notes)

	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func openContentStore(dir, url string) (content.Store, error) {
	if strings.TrimSpace(url) != "" {
		return content.NewHTTPStore(url, &http.Client{})
	}
	if strings.TrimSpace(dir) == "" {
		dir = "data/content"
	}
	return content.NewDirStore(dir)
}

func readFileArg(args []string, usage string) ([]byte, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("usage: %s", usage)
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return data, nil
}

func formIDArg(args []string, usage string) (uint64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("usage: %s", usage)
	}
	return parseFormID(args[0])
}

func parseFormID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("form id must be a positive integer, got %q", raw)
	}
	return id, nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func envOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}
