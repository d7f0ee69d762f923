package storage

import (
	"strings"
	"testing"

	"github.com/opscart/model-ops/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadGPUHourCosts(t *testing.T) {
	in := "model,cluster,card_num,price\nh100, prov-1, 8, 2.5\na100,prov-2,4,1.1\n"

	costs, err := ReadGPUHourCosts(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []models.GPUHourCost{
		{Model: "h100", Cluster: "prov-1", CardNum: 8, Price: 2.5},
		{Model: "a100", Cluster: "prov-2", CardNum: 4, Price: 1.1},
	}, costs)
}

func TestReadGPUHourCostsErrors(t *testing.T) {
	tests := map[string]string{
		"missing column": "h100,prov-1,8\n",
		"bad cards":      "h100,prov-1,eight,2.5\n",
		"zero cards":     "h100,prov-1,0,2.5\n",
		"negative price": "h100,prov-1,8,-1\n",
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadGPUHourCosts(strings.NewReader(in))
			assert.Error(t, err)
		})
	}
}
