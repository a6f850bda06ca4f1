package catalog

import "github.com/enjaz/request-service/internal/models"

// SeedAgencies is the reference list of agencies loaded into an empty catalog.
var SeedAgencies = []models.Agency{
	{ID: "ag1", Name: "وزارة الموارد البشرية", Description: "خدمات مكتب العمل، التأشيرات، ونقل الكفالة.", Icon: "Briefcase", Color: "bg-blue-500"},
	{ID: "ag2", Name: "المديرية العامة للجوازات", Description: "إصدار وتجديد الإقامات، تأشيرات الخروج والعودة.", Icon: "Plane", Color: "bg-green-600"},
	{ID: "ag3", Name: "وزارة التجارة", Description: "السجلات التجارية، العلامات التجارية، والشركات.", Icon: "BadgeDollarSign", Color: "bg-indigo-500"},
	{ID: "ag4", Name: "البلديات والأمانات", Description: "رخص المحلات، الرخص الإنشائية، والشهادات الصحية.", Icon: "HardHat", Color: "bg-orange-500"},
	{ID: "ag5", Name: "التأمينات الاجتماعية", Description: "تسجيل المنشآت، إضافة واستبعاد المشتركين.", Icon: "UserCheck", Color: "bg-teal-600"},
}

// SeedServices is the reference list of services loaded into an empty catalog.
var SeedServices = []models.Service{
	{ID: "s1", AgencyID: "ag1", Title: "فتح ملف منشأة جديد", Description: "فتح ملف للمنشأة في مكتب العمل وتفعيله.", Price: 500, Requirements: []string{"صورة السجل التجاري", "صورة الهوية", "عقد الإيجار"}},
	{ID: "s2", AgencyID: "ag1", Title: "إصدار تأشيرات عمل", Description: "طلب رصيد تأشيرات وتفعيلها.", Price: 1500, Requirements: []string{"سريان رخصة البلدية", "شهادة الزكاة"}},
	{ID: "s3", AgencyID: "ag2", Title: "تجديد إقامة عامل", Description: "تجديد هوية مقيم لمدة سنة أو سنتين.", Price: 200, Requirements: []string{"فحص طبي", "سداد الرسوم الحكومية"}},
	{ID: "s4", AgencyID: "ag3", Title: "إصدار سجل تجاري", Description: "إصدار سجل تجاري رئيسي أو فرعي.", Price: 300, Requirements: []string{"الهوية الوطنية", "العنوان الوطني"}},
}
