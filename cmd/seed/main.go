package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/ikkim/gold-portfolio-backend/config"
	"github.com/ikkim/gold-portfolio-backend/internal/app/model"
	"github.com/ikkim/gold-portfolio-backend/internal/db"
)

// 개발용 시세 이력 샘플 데이터 생성
func main() {
	days := flag.Int("days", 30, "number of days of sample price history")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	if cfg.Server.Environment == "production" {
		log.Fatal("Refusing to seed sample prices in production")
	}

	store, err := db.Initialize(&cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer store.Close()

	count, err := db.SeedPriceHistory(store.DB(), *days, model.NowInZone())
	if err != nil {
		log.Fatal("Failed to seed price history:", err)
	}
	if count == 0 {
		fmt.Println("Price history already present, nothing seeded.")
		return
	}
	fmt.Printf("Seeded %d price history rows over %d days\n", count, *days)
}
