package letter

func industrialTraining(w *writer, l *Letter) {
	w.header("Request by Students towards Industrial Training / Main Project / Internship / Industrial Visit")
	w.pair("Class: "+l.StudentClass, "Branch: "+l.StudentDepartment)
	w.gap(0.5)
	w.table(20,
		[]string{"Name & Address of firm", "Participating student", "Recommendation"},
		[]float64{64, 60, 50},
		[]string{"", l.StudentName, l.TeacherName})
	w.line(leftX, "Purpose: "+l.Reason)
	w.line(leftX, "Period from: "+date(l.FromDate)+" to "+date(l.ToDate))
	if l.TargetDepartment != "" {
		w.line(leftX, "Host department: "+l.TargetDepartment)
	}
	w.gap(1)
	w.pair("Date: "+date(l.SubmittedAt), "Signature of student: "+l.StudentName)
	w.gap(1)
	w.recommendations(l)
	w.officeUse()
	w.pair("Prepared by: "+blank, "Approved by: "+blank)
	w.footer(l)
}

func scholarship(w *writer, l *Letter) {
	w.header("REQUEST FOR RECOMMENDATION FOR SCHOLARSHIP")
	w.text(midX+40, "Date: "+date(l.SubmittedAt))
	w.gap(1.5)
	w.pair("Name: "+l.StudentName, "Adm. No.: "+orBlank(l.StudentNumber))
	w.pair("Sem: "+l.StudentClass, "Branch: "+l.StudentDepartment)
	w.line(leftX, "Name of Father/Mother: "+blank)
	w.line(leftX, "Name of Scholarship: "+blank)
	w.line(leftX, "Name of agency awarding scholarship: "+blank)
	w.line(leftX, "Purpose: "+l.Reason)
	w.gap(1)
	w.pair("Date: "+date(l.SubmittedAt), "Signature of student")
	w.gap(1)
	w.line(leftX, "Particulars verified and recommended:")
	w.pair("Group Tutor: "+orBlank(l.TeacherName), "HOD: "+orBlank(l.HODName))
	w.officeUse()
	w.line(leftX, "Remark by section:")
	w.gap(1)
	w.pair("Verification:", "Approved (Principal)")
	w.footer(l)
}

func originalCertificates(w *writer, l *Letter) {
	w.header("REQUEST BY STUDENTS BORROWING ORIGINAL CERTIFICATES")
	w.line(leftX, "Name: "+l.StudentName)
	w.pair("Semester & Branch: "+l.StudentClass+", "+l.StudentDepartment, "Adm. No.: "+orBlank(l.StudentNumber))
	w.line(leftX, "Type of Admission (Regular / Lateral entry / Spot): "+blank)
	w.gap(0.5)
	w.line(leftX, "1. Required original certificate [10th / Plus Two / Diploma / Other]: "+blank)
	w.line(leftX, "2. Purpose for which certificate is sought: "+l.Reason)
	w.line(leftX, "3. Date of return of certificate: "+date(l.ToDate))
	w.gap(1)
	w.pair("Date: "+date(l.SubmittedAt), "Signature of student: "+l.StudentName)
	w.gap(1)
	w.recommendations(l)
	w.officeUse()
	w.line(leftX, "Remarks by section:")
	w.gap(0.5)
	w.pair("Sanctioned issue of required certificates:", "Signature of Principal / Administrative officer")
	w.gap(0.5)
	w.table(16, []string{"SL NO.", "NAME OF CERTIFICATES"}, []float64{30, 144}, nil)
	w.line(leftX, "Received the certificates: "+l.StudentName)
	w.footer(l)
}

func railwayConcession(w *writer, l *Letter) {
	w.header("REQUEST BY STUDENTS FOR RAILWAY CONCESSION")
	if l.Subcategory == SubcategorySeasonTicket {
		w.line(leftX, "(A) For Season Ticket")
		w.pair("Class: "+l.StudentClass, "Branch: "+l.StudentDepartment)
		w.gap(0.5)
		w.table(12,
			[]string{"NAME", "DOB", "AGE", "FROM", "TO"},
			[]float64{54, 30, 20, 35, 35},
			[]string{l.StudentName, "", "", date(l.FromDate), date(l.ToDate)})
	} else {
		w.line(leftX, "(B) For Educational Tour / Industrial Training / Other")
		w.gap(0.5)
		w.table(12,
			[]string{"NAME & ADDRESS OF FIRM", "FROM", "TO"},
			[]float64{104, 35, 35},
			[]string{"", date(l.FromDate), date(l.ToDate)})
		w.line(leftX, "NB: Please attach a list of students.")
	}
	w.line(leftX, "Purpose: "+l.Reason)
	w.gap(1)
	w.pair("Date: "+date(l.SubmittedAt), "Signature of student: "+l.StudentName)
	w.gap(1)
	w.recommendations(l)
	w.officeUse()
	w.pair("Prepared by: "+blank, "Scrutinized by: "+blank)
	w.pair("Received:", "Name & Signature of student: "+l.StudentName)
	w.footer(l)
}

func eventPermission(w *writer, l *Letter) {
	w.header("REQUEST FOR PERMISSION TO CONDUCT / PARTICIPATE IN AN EVENT OR ACTIVITY")
	w.pair("Name: "+l.StudentName, "Adm. No.: "+orBlank(l.StudentNumber))
	w.pair("Class: "+l.StudentClass, "Branch: "+l.StudentDepartment)
	if l.TargetDepartment != "" {
		w.line(leftX, "Venue / organising department: "+l.TargetDepartment)
	}
	w.gap(0.5)
	w.line(leftX, "Details of the event / activity: "+l.Reason)
	w.line(leftX, "Period from: "+date(l.FromDate)+" to "+date(l.ToDate))
	w.gap(1)
	w.pair("Date: "+date(l.SubmittedAt), "Signature of student: "+l.StudentName)
	w.gap(1)
	w.recommendations(l)
	w.officeUse()
	w.pair("Permitted by: "+orBlank(l.PrincipalName), "Seal")
	w.footer(l)
}
