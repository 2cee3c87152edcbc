package models

import (
	"strconv"

	"bitbucket.org/mmdatafocus/contract_ledger/utils"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func normalizeKeyName(s string) string {
	return utils.NormalizeName(s)
}
