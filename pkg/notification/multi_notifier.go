package notification

import "errors"

// MultiNotifier fans a notification out to every notifier, continuing past
// failures.
type MultiNotifier []Notifier

// Send implements the Notifier interface
func (m MultiNotifier) Send(notification Notification) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
