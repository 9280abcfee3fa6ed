package notifications

import "github.com/RecoverdProject/recoverd-core/pkg/api/models"

func RecoveryStarted(ns chan<- models.Notification, payload models.RecoveryStartedParams) {
	ns <- models.Notification{
		Method: models.NotificationRecoveryStarted,
		Params: payload,
	}
}

func RecoveryCompleted(ns chan<- models.Notification, payload models.RecoveryCompletedParams) {
	ns <- models.Notification{
		Method: models.NotificationRecoveryCompleted,
		Params: payload,
	}
}

func RecoveryStopped(ns chan<- models.Notification, recoveryID string) {
	ns <- models.Notification{
		Method: models.NotificationRecoveryStopped,
		Params: models.RecoveryStoppedParams{RecoveryID: recoveryID},
	}
}
