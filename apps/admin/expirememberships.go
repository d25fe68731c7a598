package main

import (
	"context"
	"fmt"
)

// expireMemberships is meant to run daily, shortly after midnight in the configured time zone.
func (cli *commandLine) expireMemberships() error {
	cnt, err := cli.mbSvc.ExpireOverdue(context.Background())
	if err != nil {
		return err
	}
	cli.logger.Info(fmt.Sprintf("%d membership(s) expired", cnt))
	return nil
}
