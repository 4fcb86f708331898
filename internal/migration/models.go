package migration

import (
	calendardomain "github.com/smallbiznis/fieldops/internal/calendar/domain"
	catalogdomain "github.com/smallbiznis/fieldops/internal/catalog/domain"
	customerdomain "github.com/smallbiznis/fieldops/internal/customer/domain"
	historydomain "github.com/smallbiznis/fieldops/internal/history/domain"
	jobcarddomain "github.com/smallbiznis/fieldops/internal/jobcard/domain"
	notificationdomain "github.com/smallbiznis/fieldops/internal/notification/domain"
	orderdomain "github.com/smallbiznis/fieldops/internal/order/domain"
	paymentdomain "github.com/smallbiznis/fieldops/internal/payment/domain"
	techniciandomain "github.com/smallbiznis/fieldops/internal/technician/domain"
)

// Models lists every persisted type, parents first.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&customerdomain.Address{},
		&techniciandomain.Technician{},
		&catalogdomain.Category{},
		&catalogdomain.Item{},
		&orderdomain.Order{},
		&jobcarddomain.JobCard{},
		&calendardomain.Entry{},
		&calendardomain.WeeklyHours{},
		&calendardomain.DayOverride{},
		&historydomain.Entry{},
		&notificationdomain.Notification{},
		&paymentdomain.Payment{},
		&paymentdomain.EventRecord{},
	}
}
