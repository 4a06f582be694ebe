// Command rubric-export renders a submitted review to the same PDF the admin
// dashboard downloads.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"scriptportal-backend-go/internal/db"
	"scriptportal-backend-go/internal/export"
	"scriptportal-backend-go/internal/services"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	reviewID := flag.String("review-id", "", "review to export (required)")
	out := flag.StringP("out", "o", "", "output file or directory; defaults to the generated file name, use - for stdout")
	headerLogo := flag.String("header-logo", os.Getenv("LOGO_HEADER_PATH"), "header logo image")
	footerLogo := flag.String("footer-logo", os.Getenv("LOGO_FOOTER_PATH"), "footer logo image")
	dsn := flag.String("database-url", os.Getenv("DATABASE_URL"), "Postgres connection string")
	flag.Parse()

	if *reviewID == "" || *dsn == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	database, err := db.Open(ctx, *dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer database.Close()

	detail, err := services.LoadReviewDetail(ctx, database, *reviewID)
	if err != nil {
		log.Fatalf("load review %s: %v", *reviewID, err)
	}
	now := time.Now().UTC()
	name := export.Filename(detail.Script.Title, now)

	var w io.Writer = os.Stdout
	target := *out
	if target != "-" {
		if target == "" {
			target = name
		} else if info, err := os.Stat(target); err == nil && info.IsDir() {
			target = filepath.Join(target, name)
		}
		file, err := os.Create(target)
		if err != nil {
			log.Fatalf("create %s: %v", target, err)
		}
		defer file.Close()
		w = file
	}

	pages, err := export.Render(w, export.FromReviewDetail(detail), export.Options{
		HeaderLogo:  *headerLogo,
		FooterLogo:  *footerLogo,
		GeneratedAt: now,
	})
	if err != nil {
		log.Fatalf("render: %v", err)
	}
	if target != "-" {
		fmt.Fprintf(os.Stderr, "wrote %s (%d pages)\n", target, pages)
	}
}
