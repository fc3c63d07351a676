package servicedesk_test

import (
	"context"
	"testing"

	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/servicedesk/modules/servicedesk"
	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/composables"
)

func newApp(t *testing.T) application.Application {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	app := application.New(&application.ApplicationOptions{Logger: logger})
	require.NoError(t, servicedesk.NewModule(nil).Register(app))
	return app
}

func TestModule_Register(t *testing.T) {
	app := newApp(t)

	require.Equal(t, "servicedesk", servicedesk.NewModule(nil).Name())
	require.NotNil(t, app.Service(services.RequestService{}))
	require.NotNil(t, app.Service(services.LiveService{}))
	require.NotNil(t, app.Service(services.RevenueService{}))
	require.NotNil(t, app.Service(services.ExportService{}))

	keys := make([]string, 0, len(app.Controllers()))
	for _, c := range app.Controllers() {
		keys = append(keys, c.Key())
	}
	require.ElementsMatch(t, []string{"/servicedesk/api", "/servicedesk/admin", "/servicedesk/live"}, keys)
	// Only the notification relay runs without a database.
	require.Len(t, app.Workers(), 1)
	require.Equal(t, 3, app.EventPublisher().SubscribersCount())
}

func TestModule_SeedIsRepeatable(t *testing.T) {
	app := newApp(t)
	ctx := context.Background()

	require.NoError(t, app.Seeder().Seed(ctx, app))
	require.NoError(t, app.Seeder().Seed(ctx, app))

	requests := app.Service(services.RequestService{}).(*services.RequestService)
	records, err := requests.List(composables.WithActor(ctx, servicedesk.SystemActor), request.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 6)

	byStatus := map[request.Status]int{}
	for _, r := range records {
		byStatus[r.Status()]++
	}
	require.Equal(t, map[request.Status]int{
		request.StatusPending:       1,
		request.StatusScheduled:     1,
		request.StatusAwaitingParts: 1,
		request.StatusCompleted:     1,
		request.StatusPaid:          1,
		request.StatusDeclined:      1,
	}, byStatus)
}

func TestModule_LocalesLoad(t *testing.T) {
	app := newApp(t)

	require.Len(t, app.Bundle().LanguageTags(), 2)
	for lang, want := range map[string]string{"en": "Awaiting Parts", "zh": "等待配件"} {
		msg, err := i18n.NewLocalizer(app.Bundle(), lang).Localize(&i18n.LocalizeConfig{MessageID: "ServiceDesk.Statuses.AwaitingParts"})
		require.NoError(t, err)
		require.Equal(t, want, msg)
	}
}
