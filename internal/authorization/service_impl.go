package authorization

import (
	"context"
	_ "embed"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/smallbiznis/fieldops/internal/actor"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrder        = "order"
	ObjectAssignment   = "assignment"
	ObjectJobCard      = "job_card"
	ObjectPayment      = "payment"
	ObjectCalendar     = "calendar"
	ObjectTechnician   = "technician"
	ObjectCustomer     = "customer"
	ObjectCatalog      = "catalog"
	ObjectNotification = "notification"
	ObjectRealtime     = "realtime"
	ObjectOperations   = "operations"
)

const (
	ActionOrderCreate          = "order.create"
	ActionOrderView            = "order.view"
	ActionOrderReschedule      = "order.reschedule"
	ActionOrderUpdateStatus    = "order.update_status"
	ActionOrderRequestCancel   = "order.request_cancellation"
	ActionOrderCancel          = "order.cancel"
	ActionOrderDecide          = "order.decide_items"
	ActionOrderMedia           = "order.media"
	ActionOrderOverridePayment = "order.override_payment"
	ActionOrderNote            = "order.note"
	ActionOrderRate            = "order.rate"

	ActionAssign = "assignment.assign"

	ActionJobCardView     = "job_card.view"
	ActionJobCardWork     = "job_card.work"
	ActionJobCardEstimate = "job_card.estimate"

	ActionPaymentRecord  = "payment.record"
	ActionPaymentPay     = "payment.pay"
	ActionPaymentView    = "payment.view"
	ActionPaymentReceipt = "payment.receipt"

	ActionCalendarView   = "calendar.view"
	ActionCalendarManage = "calendar.manage"

	ActionTechnicianView   = "technician.view"
	ActionTechnicianManage = "technician.manage"

	ActionCustomerView   = "customer.view"
	ActionCustomerManage = "customer.manage"
	ActionCustomerSelf   = "customer.self"

	ActionCatalogView   = "catalog.view"
	ActionCatalogManage = "catalog.manage"

	ActionNotificationView = "notification.view"

	ActionRealtimeAdmins = "realtime.admins"
	ActionRealtimeUser   = "realtime.user"
	ActionRealtimeOrder  = "realtime.order"

	ActionOperationsManage = "operations.manage"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, a actor.Actor, object string, action string) error {
	if !a.Role.Valid() {
		return ErrInvalidActor
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	allowed, err := s.enforcer.Enforce(subject(a.Role), object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.log.Warn("authorization denied",
			zap.String("role", string(a.Role)),
			zap.String("actor_id", a.ID.String()),
			zap.String("object", object),
			zap.String("action", action),
		)
		return ErrForbidden
	}
	return nil
}

func subject(role actor.Role) string {
	return "role:" + string(role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Public booking channel
		{"role:public", ObjectOrder, ActionOrderCreate},
		{"role:public", ObjectCatalog, ActionCatalogView},

		// Customer permissions
		{"role:customer", ObjectOrder, ActionOrderCreate},
		{"role:customer", ObjectOrder, ActionOrderView},
		{"role:customer", ObjectOrder, ActionOrderReschedule},
		{"role:customer", ObjectOrder, ActionOrderRequestCancel},
		{"role:customer", ObjectOrder, ActionOrderDecide},
		{"role:customer", ObjectOrder, ActionOrderMedia},
		{"role:customer", ObjectOrder, ActionOrderRate},
		{"role:customer", ObjectJobCard, ActionJobCardView},
		{"role:customer", ObjectPayment, ActionPaymentPay},
		{"role:customer", ObjectPayment, ActionPaymentView},
		{"role:customer", ObjectPayment, ActionPaymentReceipt},
		{"role:customer", ObjectCustomer, ActionCustomerSelf},
		{"role:customer", ObjectCatalog, ActionCatalogView},
		{"role:customer", ObjectNotification, ActionNotificationView},
		{"role:customer", ObjectRealtime, ActionRealtimeUser},
		{"role:customer", ObjectRealtime, ActionRealtimeOrder},

		// Technician permissions
		{"role:technician", ObjectOrder, ActionOrderView},
		{"role:technician", ObjectOrder, ActionOrderUpdateStatus},
		{"role:technician", ObjectOrder, ActionOrderMedia},
		{"role:technician", ObjectJobCard, ActionJobCardView},
		{"role:technician", ObjectJobCard, ActionJobCardWork},
		{"role:technician", ObjectPayment, ActionPaymentView},
		{"role:technician", ObjectPayment, ActionPaymentReceipt},
		{"role:technician", ObjectCalendar, ActionCalendarView},
		{"role:technician", ObjectCatalog, ActionCatalogView},
		{"role:technician", ObjectNotification, ActionNotificationView},
		{"role:technician", ObjectRealtime, ActionRealtimeUser},
		{"role:technician", ObjectRealtime, ActionRealtimeOrder},

		// Admin permissions
		{"role:admin", ObjectOrder, "*"},
		{"role:admin", ObjectAssignment, "*"},
		{"role:admin", ObjectJobCard, ActionJobCardView},
		{"role:admin", ObjectJobCard, ActionJobCardEstimate},
		{"role:admin", ObjectPayment, "*"},
		{"role:admin", ObjectCalendar, "*"},
		{"role:admin", ObjectTechnician, "*"},
		{"role:admin", ObjectCustomer, ActionCustomerView},
		{"role:admin", ObjectCustomer, ActionCustomerManage},
		{"role:admin", ObjectCatalog, "*"},
		{"role:admin", ObjectNotification, ActionNotificationView},
		{"role:admin", ObjectRealtime, "*"},
		{"role:admin", ObjectOperations, ActionOperationsManage},
	}

	for _, policy := range policies {
		if len(policy) < 3 {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	// Gateway callbacks and background work act with admin rights.
	if _, err := enforcer.AddGroupingPolicy("role:system", "role:admin"); err != nil {
		return err
	}
	return nil
}
