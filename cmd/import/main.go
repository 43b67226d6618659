package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/ikkim/gold-portfolio-backend/config"
	"github.com/ikkim/gold-portfolio-backend/internal/app/repository"
	"github.com/ikkim/gold-portfolio-backend/internal/app/service"
	"github.com/ikkim/gold-portfolio-backend/internal/db"
)

func main() {
	yes := flag.Bool("y", false, "skip confirmation prompt")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: go run ./cmd/import [-y] <csv_or_xlsx_file>")
		flag.PrintDefaults()
	}
	flag.Parse()

	// 명령줄 인자 확인
	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}
	filePath := flag.Arg(0)

	// 설정 로드
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}

	file, err := os.Open(filePath)
	if err != nil {
		log.Fatal("Failed to open file:", err)
	}
	defer file.Close()

	fmt.Printf("Importing holdings from: %s\n", filePath)
	fmt.Printf("Target database: %s\n", cfg.Database.File)

	// 사용자 확인
	if !*yes {
		fmt.Print("Do you want to proceed with the import? (yes/no): ")
		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "yes" && confirm != "y" {
			fmt.Println("Import cancelled.")
			return
		}
	}

	// DB 연결
	store, err := db.Initialize(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	transfer := service.NewHoldingTransferService(repository.NewHoldingRepository(store.DB()), nil)
	result, err := transfer.Import(filepath.Base(filePath), file)
	if err != nil {
		log.Fatal("Import failed:", err)
	}

	fmt.Println("Import completed successfully!")
	fmt.Printf("Total holdings imported: %d\n", result.Imported)
	for _, msg := range result.Errors {
		fmt.Printf("  skipped %s\n", msg)
	}
}
