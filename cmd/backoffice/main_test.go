package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/modaboutique/backoffice/internal/app"
	_ "github.com/modaboutique/backoffice/internal/testing/guard"
)

func TestMainSkipsStartupInTestMode(t *testing.T) {
	app.RefreshTestMode()
	assert.True(t, app.InTestMode())
	main()
}
