package models

import (
	"log"

	"bitbucket.org/mmdatafocus/contract_ledger/config"
)

func MigrateTable() {
	db := config.GetDB()
	if db == nil {
		return
	}

	err := db.AutoMigrate(
		&ReportRun{}, &DataQualityFlag{}, &IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
