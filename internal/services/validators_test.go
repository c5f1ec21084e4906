package services

import (
	"context"
	"testing"
	"time"

	"github.com/mmlink/ispbot-backend/internal/models"
	"github.com/mmlink/ispbot-backend/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidators(t *testing.T) {
	store := storage.NewMemoryStore()
	seedPackages(t, store)
	reg := DefaultValidators(store, yangon, fixedNow)
	ctx := context.Background()

	tests := []struct {
		validator string
		input     string
		ok        bool
		want      models.FieldValue
	}{
		{ValidateFullName, "  Aung Aung ", true, models.StringValue("Aung Aung")},
		{ValidateFullName, "Al", false, models.FieldValue{}},
		{ValidateFullName, "မောင်မောင်", true, models.StringValue("မောင်မောင်")},
		{ValidateNRCPassport, "12/ABC(N)123456", true, models.StringValue("12/ABC(N)123456")},
		{ValidateNRCPassport, "12-ABC-123456", false, models.FieldValue{}},
		{ValidateContactNumber, "09123456789", true, models.StringValue("09123456789")},
		{ValidateContactNumber, "0912345", false, models.FieldValue{}},
		{ValidateContactNumber, "+959123456789", false, models.FieldValue{}},
		{ValidateAddress, "No. 1, Pyay Road", true, models.StringValue("No. 1, Pyay Road")},
		{ValidateAddress, "Yangon", false, models.FieldValue{}},
		{ValidatePackage, "business", true, models.StringValue("pkg-business")},
		{ValidatePackage, "1", true, models.StringValue("pkg-home")},
		{ValidatePackage, "Gold", false, models.FieldValue{}},
		{ValidateInstallationDate, "15-01-2025", true, models.DateValue(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC))},
		{ValidateInstallationDate, "10-01-2025", false, models.FieldValue{}},
		{ValidateInstallationDate, "2025-01-15", false, models.FieldValue{}},
	}

	for _, tt := range tests {
		t.Run(tt.validator+"/"+tt.input, func(t *testing.T) {
			v, err := reg.Lookup(tt.validator)
			require.NoError(t, err)

			got, err := v(ctx, tt.input)
			if !tt.ok {
				require.Error(t, err)
				assert.True(t, IsRejection(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPackageChoiceLookupFailureIsTransient(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := PackageChoice(store)(ctx, "home")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.False(t, IsRejection(err))
}

func TestLookupUnknownValidator(t *testing.T) {
	_, err := NewValidatorRegistry().Lookup("missing")
	assert.Error(t, err)
}
