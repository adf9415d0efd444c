package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"utiligee/internal/ee"
	"utiligee/internal/geometry"
)

// newSession opens the session every remote call in this process goes
// through. In dry-run mode requests are only recorded; region, when set,
// answers centroid requests locally.
func newSession(ctx context.Context, region *geometry.Region) (ee.Session, error) {
	if viper.GetBool("dryRun") {
		logrus.Warn("Dry run: no requests are sent")
		rec := ee.NewRecorder()
		if region != nil {
			rec.Stub("Geometry.centroid", geometry.PointGeoJSON(region.LocalCentroid()))
		}
		return rec, nil
	}
	svc, err := ee.NewService(ctx, ee.Config{
		Project:         viper.GetString("project"),
		CredentialsFile: viper.GetString("credentials"),
		Endpoint:        viper.GetString("endpoint"),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to earth engine: %w", err)
	}
	return svc, nil
}
