package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opscart/model-ops/pkg/models"
)

var gpuCSVHeader = []string{"model", "cluster", "card_num", "price"}

// ReadGPUHourCosts parses model,cluster,card_num,price rows. A first row
// equal to those names is skipped.
func ReadGPUHourCosts(r io.Reader) ([]models.GPUHourCost, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(gpuCSVHeader)
	reader.TrimLeadingSpace = true

	var costs []models.GPUHourCost
	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if line == 1 && strings.EqualFold(record[0], gpuCSVHeader[0]) {
			continue
		}

		cards, err := strconv.Atoi(record[2])
		if err != nil || cards <= 0 {
			return nil, fmt.Errorf("line %d: card_num must be a positive integer, got %q", line, record[2])
		}
		price, err := strconv.ParseFloat(record[3], 64)
		if err != nil || price < 0 {
			return nil, fmt.Errorf("line %d: price must be a non-negative number, got %q", line, record[3])
		}
		costs = append(costs, models.GPUHourCost{
			Model:   record[0],
			Cluster: record[1],
			CardNum: cards,
			Price:   price,
		})
	}
	return costs, nil
}
