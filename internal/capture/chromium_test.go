package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageURL(t *testing.T) {
	u, err := PageURL("http://127.0.0.1:8080", "mine", "")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/", u)

	u, err = PageURL("http://127.0.0.1:8080", "available", "")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/available", u)

	u, err = PageURL("http://127.0.0.1:8080", "available", "Turku")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/available?city=Turku", u)

	_, err = PageURL("http://127.0.0.1:8080", "calendar", "")
	assert.Error(t, err)
}

func TestPagePNGValidatesOptions(t *testing.T) {
	assert.Error(t, PagePNG(context.Background(), Options{OutputPath: "x.png"}))
	assert.Error(t, PagePNG(context.Background(), Options{URL: "http://127.0.0.1/"}))
}
